package telemetry

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// captureTransport keeps events in memory instead of sending them.
type captureTransport struct {
	mu     sync.Mutex
	events []*sentry.Event
}

//nolint:gocritic // signature fixed by sentry.Transport
func (c *captureTransport) Configure(sentry.ClientOptions) {}

func (c *captureTransport) SendEvent(event *sentry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureTransport) Flush(time.Duration) bool { return true }

func (c *captureTransport) FlushWithContext(ctx context.Context) bool { return ctx.Err() == nil }

func (c *captureTransport) Close() {}

func (c *captureTransport) captured() []*sentry.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.events)
}
