package mail

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/authgate/authgate/internal/logging"
)

const defaultSendTimeout = 30 * time.Second

// Dispatcher makes best-effort deliveries through a Sender. Each message gets
// exactly one attempt; failures are logged and never retried.
type Dispatcher struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{sender: sender, logger: logger, timeout: timeout}
}

// Send validates msg and delivers it synchronously, logging and returning
// any failure.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		logging.Error(ctx, d.logger, "mail rejected", err, "to", msg.To)
		return err
	}

	if err := d.sender.Send(ctx, msg); err != nil {
		logging.Error(ctx, d.logger, "mail delivery failed", err, "to", msg.To, "subject", msg.Subject)
		return err
	}
	d.logger.DebugContext(ctx, "mail sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// Dispatch delivers msg in the background. The delivery outlives ctx's
// cancellation but keeps its values, and is bounded by the dispatcher timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				logging.Error(ctx, d.logger, "mail delivery panicked", fmt.Errorf("panic: %v", r), "to", msg.To)
			}
		}()

		_ = d.Send(ctx, msg)
	}()
}

// Wait blocks until every dispatched delivery has finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
