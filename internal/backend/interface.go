package backend

import (
	"context"

	"ailedger/internal/ports"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the store instance and optional cleanup function
type BackendResult struct {
	Store   ports.Store
	Health  ports.HealthChecker // nil when the backend cannot be probed
	Cleanup CleanupFunc
}

// EventsResult holds the broker client. Publisher and Consumer are nil when
// events are disabled.
type EventsResult struct {
	Publisher ports.EventPublisher
	Consumer  ports.EventConsumer
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates the primary store based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateMirror creates the Google Sheets store the worker mirrors into
	CreateMirror(ctx context.Context, config Config) (*BackendResult, error)
	// CreateEvents connects to the configured message broker
	CreateEvents(ctx context.Context, config Config) (*EventsResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// File backend specific
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Postgres specific
	PostgresURL string

	// Google Sheets specific
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleSettingsSheet   string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// Events
	Broker       BrokerType
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	NATSURL      string
	NATSSubject  string
	NATSQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	FileBackend     BackendType = "file"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	SheetsBackend   BackendType = "sheets"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, FileBackend, SQLiteBackend, PostgresBackend, SheetsBackend:
		return true
	default:
		return false
	}
}

// BrokerType names the message broker carrying ledger events.
type BrokerType string

const (
	NoBroker   BrokerType = "none"
	AMQPBroker BrokerType = "amqp"
	NATSBroker BrokerType = "nats"
)

func (b BrokerType) IsValid() bool {
	switch b {
	case NoBroker, AMQPBroker, NATSBroker, "":
		return true
	default:
		return false
	}
}
