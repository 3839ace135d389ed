// Package queue abstracts the intake job queue. Production runs on SQS;
// tests and single-process deployments use the in-memory implementation.
package queue

import "context"

// Client is the transport under the intake queue.
type Client interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one raw queue entry. Delete with the receipt handle after
// processing; an unacknowledged message is redelivered.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}
