package notification

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
)

// Dispatcher sends notifications from a bounded buffer on its own goroutine.
//
// Notify never blocks. When the buffer is full the notification is dropped and logged.
type Dispatcher struct {
	sender   Sender
	renderer Renderer
	queue    chan domain.Notification
	logger   zerolog.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewDispatcher returns a dispatcher buffering up to size notifications.
func NewDispatcher(sender Sender, renderer Renderer, size int, logger zerolog.Logger) *Dispatcher {
	if size <= 0 {
		size = 1
	}

	return &Dispatcher{
		sender:   sender,
		renderer: renderer,
		queue:    make(chan domain.Notification, size),
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Notify enqueues n for delivery.
func (d *Dispatcher) Notify(ctx context.Context, n domain.Notification) {
	l := zerolog.Ctx(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		l.Warn().Str("kind", string(n.Kind)).Int64("transaction_id", n.TransactionID).Msg("dispatcher closed, notification dropped")
		return
	}

	select {
	case d.queue <- n:
	default:
		l.Warn().Str("kind", string(n.Kind)).Int64("transaction_id", n.TransactionID).Msg("notification buffer full, notification dropped")
	}
}

// Run delivers queued notifications until Close is called and the buffer is drained.
func (d *Dispatcher) Run() {
	defer close(d.done)

	ctx := d.logger.WithContext(context.Background())

	for n := range d.queue {
		m, err := d.renderer.Render(n)
		if err != nil {
			d.logger.Error().Err(err).Send()
			continue
		}

		if err := d.sender.Send(ctx, m); err != nil {
			d.logger.Error().Err(err).
				Str("kind", string(n.Kind)).
				Int64("transaction_id", n.TransactionID).
				Msg("notification not delivered")
		}
	}
}

// Close stops accepting notifications and waits until Run has drained the buffer.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	<-d.done
}
