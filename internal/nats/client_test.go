package nats

import (
	"strings"
	"testing"
)

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient("nats://127.0.0.1:1", "ailedger.events", "mirror", nil)
	if err == nil {
		t.Fatal("NewClient should fail when no server is listening")
	}
	if !strings.Contains(err.Error(), "connect NATS") {
		t.Errorf("error should be wrapped with context, got: %v", err)
	}
}

func TestClose_NilConnection(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on an unconnected client = %v", err)
	}
}
