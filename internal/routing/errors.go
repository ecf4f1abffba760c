package routing

import "fmt"

// Kind enumerates the BadBackendError taxonomy.
type Kind int

const (
	KindBadRequest Kind = iota
	KindUnknownQueue
	KindUnknownHost
	KindUnhealthyHost
)

// BadBackendError is the sum type the resolver returns instead of a route.
// QueueID is only meaningful when Kind is KindUnknownQueue; it is what the
// client response's JSON body echoes back.
type BadBackendError struct {
	Kind    Kind
	Message string
	QueueID string
}

func (e *BadBackendError) Error() string { return e.Message }

func badRequest(msg string) *BadBackendError {
	return &BadBackendError{Kind: KindBadRequest, Message: msg}
}

func unknownQueue(queueID string) *BadBackendError {
	return &BadBackendError{
		Kind:    KindUnknownQueue,
		Message: fmt.Sprintf("Bad event queue_id: %s", queueID),
		QueueID: queueID,
	}
}

func unknownHost(address string) *BadBackendError {
	return &BadBackendError{Kind: KindUnknownHost, Message: fmt.Sprintf("Unknown host: %s", address)}
}

func unhealthyHost(address string) *BadBackendError {
	return &BadBackendError{Kind: KindUnhealthyHost, Message: fmt.Sprintf("Unhealthy host: %s", address)}
}
