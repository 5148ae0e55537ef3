// Package typewriter implements the typing-effect reveal: a fully-received
// response string is surfaced one rune at a time to simulate streamed output.
package typewriter

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	defaultMinDelay = 5 * time.Millisecond
	defaultMaxDelay = 15 * time.Millisecond
)

// Typewriter schedules character reveals with a jittered inter-character
// delay, so the cadence does not look mechanical.
type Typewriter struct {
	minDelay time.Duration
	maxDelay time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Typewriter.
type Option func(*Typewriter)

// WithDelays overrides the inter-character delay bounds. Used by the terminal
// client for configured pacing and by tests to run fast.
func WithDelays(min, max time.Duration) Option {
	return func(t *Typewriter) {
		if min > 0 {
			t.minDelay = min
		}
		if max >= t.minDelay {
			t.maxDelay = max
		} else {
			t.maxDelay = t.minDelay
		}
	}
}

// New creates a Typewriter with 5-15ms jitter unless overridden.
func New(opts ...Option) *Typewriter {
	t := &Typewriter{
		minDelay: defaultMinDelay,
		maxDelay: defaultMaxDelay,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Typewriter) delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.maxDelay <= t.minDelay {
		return t.minDelay
	}
	return t.minDelay + time.Duration(t.rng.Int63n(int64(t.maxDelay-t.minDelay)))
}

// Start reveals text rune by rune on a background goroutine. tick receives
// the accumulated partial string after each appended rune; done receives the
// full text exactly once, unless the returned cancel function (or ctx) stops
// the reveal first. After done fires no further calls are made.
func (t *Typewriter) Start(ctx context.Context, text string, tick func(partial string), done func(full string)) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		runes := []rune(text)
		var partial []rune
		timer := time.NewTimer(t.delay())
		defer timer.Stop()

		for _, r := range runes {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			partial = append(partial, r)
			if tick != nil {
				tick(string(partial))
			}
			timer.Reset(t.delay())
		}

		select {
		case <-ctx.Done():
			return
		default:
		}
		if done != nil {
			done(text)
		}
	}()

	return cancel
}
