package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Mode selects which change sources Start drives, per spec §4.3.
type Mode int

const (
	// ModeFull runs both watchers and reconciles both directions.
	ModeFull Mode = iota
	// ModePull only reconciles remote changes onto the local side.
	ModePull
	// ModePush only reconciles local changes onto the remote side.
	ModePush
)

// ChangeSource is the watcher contract: something that feeds documents into
// the Store (via its own Put calls) until its context is cancelled.
type ChangeSource interface {
	Start(ctx context.Context) error
	Stop() error
}

// maxNoProgress bounds the Open-Question infinite-loop guard (spec §9): the
// original behavior (warn and keep looping) is kept, but this many
// consecutive no-progress passes through the inner loop is now treated as an
// unclassifiable condition rather than spinning forever.
const maxNoProgress = 25

// Engine ties a Store to a local and remote Side and runs the
// reconciliation loop described in spec §4.3/§4.4.
type Engine struct {
	store  Store
	local  *Side
	remote *Side

	localWatcher  ChangeSource
	remoteWatcher ChangeSource

	events *EventBus
	ignore func(doc *Metadata) bool

	// TrashingDelay is how long trashWithParent waits for an
	// about-to-be-trashed parent to actually materialize as trashed
	// before giving up and trashing the child directly (spec §4.7).
	TrashingDelay time.Duration
	// Heartbeat is how long trashWithParent waits, after recursing into
	// an already-trashed-but-not-yet-applied parent, before returning
	// control to the sync loop (spec §4.7).
	Heartbeat time.Duration

	// LiveWait, when true, makes sync() block on Store.WaitForChange
	// before draining the feed (daemon mode). Tests that drive the loop
	// step by step leave it false.
	LiveWait bool

	clockFn func() time.Time

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// NewEngine constructs an Engine from its required collaborators. The
// engine itself never reads Side.Opposite: trashWithParent calls the remote
// side it was given here directly.
func NewEngine(store Store, local, remote *Side, localWatcher, remoteWatcher ChangeSource, ignore func(*Metadata) bool) *Engine {
	return &Engine{
		store:         store,
		local:         local,
		remote:        remote,
		localWatcher:  localWatcher,
		remoteWatcher: remoteWatcher,
		events:        NewEventBus(),
		ignore:        ignore,
		TrashingDelay: 1 * time.Second,
		Heartbeat:     1 * time.Second,
		LiveWait:      true,
	}
}

// Events returns the bus observers subscribe to.
func (e *Engine) Events() *EventBus { return e.events }

func (e *Engine) now() time.Time {
	if e.clockFn != nil {
		return e.clockFn()
	}
	return time.Now()
}

func (e *Engine) isStopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Start runs the watcher(s) appropriate to mode plus the reconciliation
// loop until ctx is cancelled, Stop is called, or a FatalError or the
// no-progress guard trips. It blocks until all of those have unwound.
func (e *Engine) Start(ctx context.Context, mode Mode) error {
	if err := e.store.EnsureIndexes(); err != nil {
		return fmt.Errorf("ensure store indexes: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.stopped = false
	e.cancel = cancel
	e.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	if mode != ModePull && e.localWatcher != nil {
		g.Go(func() error { return e.localWatcher.Start(gctx) })
	}
	if mode != ModePush && e.remoteWatcher != nil {
		g.Go(func() error { return e.remoteWatcher.Start(gctx) })
	}

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			default:
			}

			if err := e.sync(gctx); err != nil {
				if e.isStopped() {
					return nil
				}
				return err
			}
		}
	})

	err := g.Wait()
	_ = e.Stop()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop signals the loop and both watchers to unwind, and waits for the
// watchers to report stopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	e.stopped = true
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var errs []error
	if e.localWatcher != nil {
		if err := e.localWatcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop local watcher: %w", err))
		}
	}
	if e.remoteWatcher != nil {
		if err := e.remoteWatcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop remote watcher: %w", err))
		}
	}
	return errors.Join(errs...)
}

// sync implements spec §4.3 step 2-6: one pass of waiting for live changes
// (if LiveWait), then draining the feed from the durable cursor to its
// current tail, applying each entry in turn.
func (e *Engine) sync(ctx context.Context) error {
	seq, err := e.store.GetLocalSeq()
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}

	if e.LiveWait {
		if err := e.store.WaitForChange(ctx, seq); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("wait for change: %w", err)
		}
	}

	e.events.Publish(Event{Kind: EventSyncStart, Seq: seq, At: e.now()})

	unlock, err := e.store.Lock(ctx)
	if err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	defer unlock()

	lastSeq := seq
	noProgress := 0

	for {
		if ctx.Err() != nil || e.isStopped() {
			break
		}

		curSeq, err := e.store.GetLocalSeq()
		if err != nil {
			return fmt.Errorf("read cursor: %w", err)
		}
		if curSeq == lastSeq {
			noProgress++
			slog.Warn("syncengine: no progress since last pass", "seq", curSeq, "count", noProgress)
			if noProgress >= maxNoProgress {
				return &FatalError{Code: CodeUnclassifiable, Message: fmt.Sprintf("no progress after %d passes at seq %d", noProgress, curSeq)}
			}
		} else {
			noProgress = 0
		}
		lastSeq = curSeq

		entry, ok, err := e.store.NextChange(curSeq, true)
		if err != nil {
			return fmt.Errorf("read next change: %w", err)
		}
		if !ok {
			break
		}

		e.events.Publish(Event{Kind: EventSyncCurrent, Seq: entry.Seq, At: e.now()})

		if err := e.apply(ctx, entry); err != nil {
			if e.isStopped() {
				return nil
			}
			return err
		}
	}

	e.events.Publish(Event{Kind: EventSyncEnd, Seq: lastSeq, At: e.now()})
	return nil
}
