package application

// MessageSubscriber delivers raw bus messages for a subject. A handler error
// asks the bus to redeliver the message.
type MessageSubscriber interface {
	Subscribe(subject string, handler func([]byte) error) error
}
