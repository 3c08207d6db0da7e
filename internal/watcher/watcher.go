// Package watcher keeps one one-shot Transfer listener per tracked token.
//
// Each token moves Unwatched -> Watching -> Fired. A fired token is not
// re-armed by the watcher itself; a new subscription for the same token arms
// it again.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/core-coin/liqnotify/internal/metrics"
	"github.com/core-coin/liqnotify/internal/models"
	"github.com/core-coin/liqnotify/pkg/logger"
)

type State int

const (
	Unwatched State = iota
	Watching
	Fired
)

func (s State) String() string {
	switch s {
	case Watching:
		return "watching"
	case Fired:
		return "fired"
	}
	return "unwatched"
}

// FireFunc runs once per armed token, on the chain client's goroutine.
type FireFunc func(token string, transfer *models.Transfer)

type entry struct {
	armedAt time.Time
	cancel  context.CancelFunc
	sub     models.WatchSubscription
}

// Watcher is the registry of armed listeners keyed by token address.
type Watcher struct {
	logger *logger.Logger
	chain  models.BlockchainService
	onFire FireFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	active map[string]*entry
	fired  map[string]time.Time
}

func New(chain models.BlockchainService, onFire FireFunc, logger *logger.Logger) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		logger: logger,
		chain:  chain,
		onFire: onFire,
		ctx:    ctx,
		cancel: cancel,
		active: make(map[string]*entry),
		fired:  make(map[string]time.Time),
	}
}

// Arm starts watching token. It returns false without touching the chain
// when the token is already being watched.
func (w *Watcher) Arm(token string) (bool, error) {
	w.mu.Lock()
	if w.ctx.Err() != nil {
		w.mu.Unlock()
		return false, fmt.Errorf("watcher is stopped")
	}
	if _, ok := w.active[token]; ok {
		w.mu.Unlock()
		return false, nil
	}
	ctx, cancel := context.WithCancel(w.ctx)
	e := &entry{armedAt: time.Now(), cancel: cancel}
	w.active[token] = e
	delete(w.fired, token)
	w.setGauge()
	w.mu.Unlock()

	sub, err := w.chain.WatchTransferOnce(ctx, token, func(transfer *models.Transfer, err error) {
		w.handle(token, e, transfer, err)
	})
	if err != nil {
		w.mu.Lock()
		if w.active[token] == e {
			delete(w.active, token)
			w.setGauge()
		}
		w.mu.Unlock()
		cancel()
		return false, fmt.Errorf("failed to watch token %s: %w", token, err)
	}

	w.mu.Lock()
	e.sub = sub
	w.mu.Unlock()

	w.logger.Info("Watching token for liquidity", "token", token)
	return true, nil
}

func (w *Watcher) handle(token string, e *entry, transfer *models.Transfer, err error) {
	w.mu.Lock()
	if w.active[token] != e {
		// disarmed or superseded
		w.mu.Unlock()
		return
	}
	delete(w.active, token)
	if err == nil {
		w.fired[token] = time.Now()
	}
	w.setGauge()
	w.mu.Unlock()
	e.cancel()

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			metrics.WatchErrorsTotal.Inc()
			w.logger.Error("Token watch ended before liquidity was added, token is unwatched until the next reconcile or restart",
				"token", token, "error", err)
		}
		return
	}

	metrics.LiquidityEventsTotal.Inc()
	w.onFire(token, transfer)
}

// Disarm cancels the listener of token. It returns false when the token was
// not being watched.
func (w *Watcher) Disarm(token string) bool {
	w.mu.Lock()
	e, ok := w.active[token]
	if ok {
		delete(w.active, token)
		w.setGauge()
	}
	w.mu.Unlock()

	if !ok {
		return false
	}
	e.cancel()
	if e.sub != nil {
		e.sub.Unsubscribe()
	}
	w.logger.Info("Stopped watching token", "token", token)
	return true
}

// State reports the lifecycle state of token.
func (w *Watcher) State(token string) State {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.active[token]; ok {
		return Watching
	}
	if _, ok := w.fired[token]; ok {
		return Fired
	}
	return Unwatched
}

// IsWatching is shorthand for State(token) == Watching.
func (w *Watcher) IsWatching(token string) bool {
	return w.State(token) == Watching
}

// Armed lists the watched tokens sorted by address.
func (w *Watcher) Armed() []models.WatcherInfo {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]models.WatcherInfo, 0, len(w.active))
	for token, e := range w.active {
		out = append(out, models.WatcherInfo{Token: token, State: Watching.String(), ArmedAt: e.armedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

// Stop cancels every listener. Armed tokens stay in the registry and are
// re-armed on the next start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	entries := w.active
	w.active = make(map[string]*entry)
	w.setGauge()
	w.mu.Unlock()

	w.cancel()
	for _, e := range entries {
		if e.sub != nil {
			e.sub.Unsubscribe()
		}
	}
}

// Caller must hold w.mu.
func (w *Watcher) setGauge() {
	metrics.ArmedWatchers.Set(float64(len(w.active)))
}
