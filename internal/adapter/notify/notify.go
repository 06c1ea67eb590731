// Package notify holds the realtime dispatchers handed to the order service.
package notify

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Publisher is the dispatcher contract shared by every backend here
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

// Noop drops every notification
type Noop struct{}

func (Noop) Publish(context.Context, string, string, interface{}) error { return nil }

// Message is one notification captured by Recorder
type Message struct {
	Channel string
	Event   string
	Payload interface{}
}

// Recorder keeps published notifications in memory, in publish order
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

func (r *Recorder) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, Message{Channel: channel, Event: event, Payload: payload})
	return nil
}

// FailWith makes subsequent publishes return err; nil restores delivery
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Events returns the event names published to channel
func (r *Recorder) Events(channel string) []string {
	var out []string
	for _, m := range r.Messages() {
		if m.Channel == channel {
			out = append(out, m.Event)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}

// Fanout publishes to every backend concurrently and reports the first error
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	switch len(f) {
	case 0:
		return nil
	case 1:
		return f[0].Publish(ctx, channel, event, payload)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range f {
		p := p
		g.Go(func() error {
			return p.Publish(gctx, channel, event, payload)
		})
	}
	return g.Wait()
}
