// Package greeting fetches the backend greeting once and keeps the text.
package greeting

import (
	"context"
	"sync"

	"github.com/file-panel/backend/internal/logging"
)

var logger = logging.New("greeting")

// Source returns the greeting text. *client.Client implements it.
type Source interface {
	Greeting(ctx context.Context) (string, error)
}

// Fetcher issues a single greeting request on first activation.
// A failed request leaves the message empty.
type Fetcher struct {
	source Source

	once    sync.Once
	mu      sync.RWMutex
	message string
	done    chan struct{}
}

func NewFetcher(source Source) *Fetcher {
	return &Fetcher{source: source, done: make(chan struct{})}
}

// Activate starts the request in the background. Later calls do nothing.
func (f *Fetcher) Activate(ctx context.Context) {
	f.once.Do(func() {
		go f.fetch(ctx)
	})
}

func (f *Fetcher) fetch(ctx context.Context) {
	defer close(f.done)

	msg, err := f.source.Greeting(ctx)
	if err != nil {
		logger.Debugf("greeting unavailable: %v", err)
		return
	}

	f.mu.Lock()
	f.message = msg
	f.mu.Unlock()
}

// Message returns the greeting, or "" until a fetch has succeeded.
func (f *Fetcher) Message() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.message
}

// Done is closed once the request finishes, successfully or not.
func (f *Fetcher) Done() <-chan struct{} {
	return f.done
}
