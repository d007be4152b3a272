package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels published by this service.
const (
	ChannelPaymentApplied            = "payment.applied"
	ChannelPaymentRefunded           = "payment.refunded"
	ChannelReconciliationDiscrepancy = "reconciliation.discrepancy"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
