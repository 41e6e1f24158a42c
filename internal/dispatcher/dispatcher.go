// Package dispatcher runs the singleton fan-out loop: it consumes the cues
// subject from the event bus and writes matching envelopes to every live
// listen session of the publishing user.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/faatca/cue/internal/bus"
	"github.com/faatca/cue/internal/cue"
	"github.com/faatca/cue/internal/registry"
)

const retryDelay = time.Second

// Dispatcher consumes the event bus and fans cues out to the registry.
type Dispatcher struct {
	sub      bus.Subscriber
	registry *registry.Registry
	logger   *zap.Logger

	done chan struct{}
}

// New creates a Dispatcher.
func New(sub bus.Subscriber, reg *registry.Registry, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		sub:      sub,
		registry: reg,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start launches the receive loop. It runs until ctx is cancelled; transient
// subscribe or receive errors are logged and retried after a fixed backoff.
func (d *Dispatcher) Start(ctx context.Context) {
	go func() {
		defer close(d.done)
		for {
			if err := d.receive(ctx); err != nil {
				if ctx.Err() != nil {
					d.logger.Info("dispatcher stopping")
					return
				}
				d.logger.Error("dispatcher receive failed", zap.Error(err))
				select {
				case <-time.After(retryDelay):
				case <-ctx.Done():
					d.logger.Info("dispatcher stopping")
					return
				}
			}
		}
	}()
}

// Wait blocks until the receive loop has fully exited after cancellation,
// so in-flight deliveries finish before the process tears down.
func (d *Dispatcher) Wait() {
	<-d.done
}

func (d *Dispatcher) receive(ctx context.Context) error {
	sub, err := d.sub.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	d.logger.Info("dispatcher subscribed", zap.String("subject", cue.Subject))
	for {
		data, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			return err
		}
		d.deliver(ctx, data)
	}
}

// deliver decodes one payload and writes it to every matching session.
func (d *Dispatcher) deliver(ctx context.Context, data []byte) {
	var payload cue.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		d.logger.Warn("dropping malformed cue payload", zap.Error(err))
		return
	}

	type target struct {
		session *registry.Session
		names   []string
	}
	var targets []target
	for _, s := range d.registry.Sessions(payload.UID) {
		if names := matchNames(payload.Names, s); len(names) > 0 {
			targets = append(targets, target{session: s, names: names})
		}
	}
	if len(targets) == 0 {
		return
	}

	// Concurrent fan-out with sibling isolation: one slow or dead session
	// must not hold up the rest. Send errors are swallowed here; the
	// session's own read loop observes the broken transport and removes it.
	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func(t target) {
			defer wg.Done()
			env := cue.Envelope{ID: payload.ID, Names: t.names, Content: payload.Content}
			if err := t.session.Sink.Send(ctx, env); err != nil {
				d.logger.Debug("cue delivery failed",
					zap.String("session", t.session.ID),
					zap.Error(err),
				)
			}
		}(t)
	}
	wg.Wait()
}

// matchNames filters the published names down to those this session may and
// wants to receive: the session key's pattern gates access, then any
// subscription pattern must match.
func matchNames(names []string, s *registry.Session) []string {
	var matches []string
	for _, n := range names {
		if s.KeyPattern != nil && !cue.Match(n, *s.KeyPattern) {
			continue
		}
		for _, p := range s.Patterns {
			if cue.Match(n, p) {
				matches = append(matches, n)
				break
			}
		}
	}
	sort.Strings(matches)
	return matches
}
