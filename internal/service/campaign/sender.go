package campaign

import "context"

// Message is one rendered email ready for the provider.
type Message struct {
	To        string
	ToName    string
	FromName  string
	FromEmail string
	ReplyTo   string
	Subject   string
	HTML      string
}

// Sender delivers a single message and returns the provider message ID.
// Implementations must be safe for concurrent use; dispatch calls Send
// from many goroutines at once.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}
