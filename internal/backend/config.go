package backend

import (
	"fmt"

	"ailedger/internal/config"
)

// MirrorQueueGroup is the NATS queue group shared by mirror workers.
const MirrorQueueGroup = "ailedger-mirror"

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.Storage.Backend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.Storage.Backend)
	}
	broker := BrokerType(appConfig.Events.Broker)
	if !broker.IsValid() {
		return Config{}, fmt.Errorf("invalid event broker in config: %s", appConfig.Events.Broker)
	}

	return Config{
		Type: backendType,

		DataDirectory: appConfig.Storage.DataDir,
		SQLiteDBPath:  appConfig.Storage.SQLitePath,
		PostgresURL:   appConfig.Storage.PostgresURL,

		GoogleSpreadsheetID:   appConfig.Sheets.SpreadsheetID,
		GoogleSheetName:       appConfig.Sheets.SheetName,
		GoogleSettingsSheet:   appConfig.Sheets.SettingsSheet,
		GoogleCredentialsFile: appConfig.Sheets.CredentialsFile,
		GoogleCredentialsJSON: appConfig.Sheets.CredentialsJSON,

		Broker:       broker,
		AMQPURL:      appConfig.Events.AMQPURL,
		AMQPExchange: appConfig.Events.AMQPExchange,
		AMQPQueue:    appConfig.Events.AMQPQueue,
		NATSURL:      appConfig.Events.NATSURL,
		NATSSubject:  appConfig.Events.NATSSubject,
		NATSQueue:    MirrorQueueGroup,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case FileBackend:
		if c.DataDirectory == "" {
			return fmt.Errorf("data directory is required for file backend")
		}
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for postgres backend")
		}
	case SheetsBackend:
		if err := c.validateSheets(); err != nil {
			return err
		}
	case MemoryBackend:
		// Memory backend doesn't require additional validation
	}

	switch c.Broker {
	case AMQPBroker:
		if c.AMQPURL == "" || c.AMQPExchange == "" || c.AMQPQueue == "" {
			return fmt.Errorf("AMQP URL, exchange and queue are required for amqp broker")
		}
	case NATSBroker:
		if c.NATSURL == "" || c.NATSSubject == "" {
			return fmt.Errorf("NATS URL and subject are required for nats broker")
		}
	case NoBroker, "":
	default:
		return fmt.Errorf("invalid event broker: %s", c.Broker)
	}

	return nil
}

func (c Config) validateSheets() error {
	if c.GoogleSpreadsheetID == "" {
		return fmt.Errorf("Google Spreadsheet ID is required for sheets")
	}
	if c.GoogleCredentialsFile == "" && c.GoogleCredentialsJSON == "" {
		return fmt.Errorf("either GoogleCredentialsFile or GoogleCredentialsJSON must be provided for sheets")
	}
	return nil
}

// GetBackendTypes returns all valid backend types
func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, FileBackend, SQLiteBackend, PostgresBackend, SheetsBackend}
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := GetBackendTypes()
	strings := make([]string, len(types))
	for i, t := range types {
		strings[i] = t.String()
	}
	return strings
}
