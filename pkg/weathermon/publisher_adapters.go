package weathermon

import (
	"context"
	"sync"
)

// RecordHandler receives a copy of every record the sampler publishes.
type RecordHandler func(Record) error

// NewCallbackPublisher adapts a RecordHandler into a Publisher. A nil handler
// or a handler error counts as a failed publish.
func NewCallbackPublisher(name string, fn RecordHandler) Publisher {
	if name == "" {
		name = "callback"
	}
	return &callbackPublisher{name: name, fn: fn}
}

// NewChannelPublisher exposes records via a channel; it returns the publisher,
// the read-only channel, and a close function the caller should invoke during
// shutdown. Publish blocks until the record is received, the publisher is
// closed, or ctx is done.
func NewChannelPublisher(name string, buffer int) (Publisher, <-chan Record, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Record, buffer)
	p := &channelPublisher{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return p, ch, func() { p.close() }
}

type callbackPublisher struct {
	name string
	fn   RecordHandler
}

func (p *callbackPublisher) Publish(_ context.Context, rec *Record) bool {
	if p.fn == nil || rec == nil {
		return false
	}
	return p.fn(*rec) == nil
}

func (p *callbackPublisher) Close() error { return nil }
func (p *callbackPublisher) Name() string { return p.name }

type channelPublisher struct {
	name   string
	ch     chan Record
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (p *channelPublisher) Publish(ctx context.Context, rec *Record) bool {
	if rec == nil {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	select {
	case <-p.closed:
		return false
	default:
	}

	select {
	case <-p.closed:
		return false
	case <-ctx.Done():
		return false
	case p.ch <- *rec:
		return true
	}
}

// Close is a no-op; the owner closes the stream with the func returned by
// NewChannelPublisher.
func (p *channelPublisher) Close() error { return nil }

func (p *channelPublisher) Name() string { return p.name }

func (p *channelPublisher) close() {
	p.once.Do(func() {
		close(p.closed)
		p.mu.Lock()
		close(p.ch)
		p.mu.Unlock()
	})
}

var (
	_ Publisher = (*callbackPublisher)(nil)
	_ Publisher = (*channelPublisher)(nil)
)
