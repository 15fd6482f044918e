package parliament

import (
	"context"
	"fmt"
)

// HandlerFunc handles one envelope.
type HandlerFunc func(ctx context.Context, env *Envelope) error

// Dispatcher routes envelopes to handlers by purpose.
type Dispatcher struct {
	handlers map[Purpose]HandlerFunc
}

// NewDispatcher creates a dispatcher with no handlers.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Purpose]HandlerFunc)}
}

// Handle registers h for purpose, replacing any previous handler.
func (d *Dispatcher) Handle(purpose Purpose, h HandlerFunc) {
	d.handlers[purpose] = h
}

// Dispatch runs the handler registered for env.Purpose. A panicking handler
// is reported as an error so the caller's loop keeps running.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Envelope) (err error) {
	h, ok := d.handlers[env.Purpose]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPurpose, env.Purpose)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s handler panicked: %v", env.Purpose, r)
		}
		if err != nil {
			handlerErrors.WithLabelValues(string(env.Purpose)).Inc()
		}
	}()

	received.WithLabelValues(string(env.Purpose)).Inc()
	return h(ctx, env)
}
