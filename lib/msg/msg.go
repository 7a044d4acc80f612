// Package msg defines the interface for different message brokers. The coordinator publishes one event per
// submitted fulfillment transaction so front-ends can follow oracle activity in real time.
package msg

// Event is the message published for one submitted transaction.
type Event struct {
	Chain     string `json:"chain"`
	Kind      string `json:"kind"` // fulfill, fail or fulfillWithdrawal
	RequestID string `json:"requestId"`
	Hash      string `json:"hash"`
	Nonce     uint64 `json:"nonce"`
}

type MsgBroker interface {
	Setup(interface{}) error
	Close() error

	// SendFulfillments publishes the transaction events of one run.
	SendFulfillments(events []Event) error
}
