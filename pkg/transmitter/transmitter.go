// Package transmitter forwards items to consumers as they are stored.
package transmitter

import (
	"context"
	"sync"

	"github.com/kscrap/kscrap/pkg/item"
	"github.com/kscrap/kscrap/pkg/kscraperrors"
	"github.com/kscrap/kscrap/pkg/metrics"
)

// Transmitter receives every item a repository stores.
type Transmitter interface {
	Transmit(ctx context.Context, it item.Item) error
	// Closed reports whether Close was called.
	Closed() bool
	Close() error
}

// Channel delivers items over a Go channel to a single subscriber.
type Channel struct {
	mu         sync.RWMutex
	ch         chan item.Item
	done       chan struct{}
	sending    sync.WaitGroup
	subscribed bool
	closed     bool
}

// NewChannel creates a channel transmitter with the given buffer size.
func NewChannel(buffer int) *Channel {
	if buffer < 0 {
		buffer = 0
	}
	return &Channel{ch: make(chan item.Item, buffer), done: make(chan struct{})}
}

// Subscribe returns the item stream. Only one subscriber is allowed.
func (c *Channel) Subscribe() (<-chan item.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribed {
		return nil, kscraperrors.New(kscraperrors.ErrorTypeConcurrency, "channel transmitter already has a subscriber")
	}
	c.subscribed = true
	return c.ch, nil
}

// Transmit sends it, blocking while the buffer is full until ctx is done or
// the channel is closed.
func (c *Channel) Transmit(ctx context.Context, it item.Item) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return kscraperrors.New(kscraperrors.ErrorTypeTransport, "channel transmitter is closed")
	}
	c.sending.Add(1)
	c.mu.RUnlock()
	defer c.sending.Done()

	select {
	case c.ch <- it:
		metrics.ItemsTransmitted.WithLabelValues("channel", "success").Inc()
		return nil
	case <-c.done:
		metrics.ItemsTransmitted.WithLabelValues("channel", "error").Inc()
		return kscraperrors.New(kscraperrors.ErrorTypeTransport, "channel transmitter closed before delivery")
	case <-ctx.Done():
		metrics.ItemsTransmitted.WithLabelValues("channel", "error").Inc()
		return kscraperrors.Wrap(ctx.Err(), kscraperrors.ErrorTypeTransport, "item not delivered")
	}
}

// Closed implements Transmitter
func (c *Channel) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// Close ends the stream. Blocked senders give up and buffered items can
// still be received.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.sending.Wait()
	close(c.ch)
	return nil
}
