package provider

import "context"

// Adapter is the outbound delivery port, one implementation per channel.
// The engine never sees the provider wire protocol, only this contract.
type Adapter interface {
	Send(ctx context.Context, address string, subject string, body string) (*SendResult, error)
}

// SendResult stores provider call metadata for audit and persistence.
type SendResult struct {
	StatusCode int
	Body       string
	MessageID  string
}
