package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// offlineProbeInterval is how often the offline wait loop retries
// DiskUsage once the remote is judged unreachable (spec §4.5).
const offlineProbeInterval = 60 * time.Second

// maxDocErrors is the per-document retry budget (spec §4.5): after this
// many consecutive failures, the record is left "poisoned" until a new
// revision supersedes it.
const maxDocErrors = 3

// FatalError is raised for disk-full, quota-exceeded, revoked, or
// forbidden conditions, and with CodeUnclassifiable for an unknown docType
// or a tripped no-progress guard. It carries a stable Code so callers can
// errors.As instead of string-matching the message (spec §7).
type FatalError struct {
	Code    string
	Message string
}

func (e *FatalError) Error() string { return e.Message }

const (
	CodeDiskFull       = "disk_full"
	CodeQuotaExceeded  = "quota_exceeded"
	CodeRevoked        = "revoked"
	CodeForbidden      = "forbidden"
	CodeUnclassifiable = "unclassifiable"
)

// noSpacer is implemented by Side errors that represent local ENOSPC-
// equivalent conditions.
type noSpacer interface{ NoSpace() bool }

// remoteStatusCoder is implemented by Side errors that carry an HTTP
// status code from the remote.
type remoteStatusCoder interface{ StatusCode() int }

func isNoSpace(err error) bool {
	var ns noSpacer
	if errors.As(err, &ns) {
		return ns.NoSpace()
	}
	return false
}

func remoteStatus(err error) (int, bool) {
	var sc remoteStatusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

// ApplyOutcome tells sync() what to do after handleApplyError returns.
type ApplyOutcome int

const (
	// OutcomeRetry means the offline condition resolved; the caller
	// should re-attempt the same change without advancing the cursor.
	OutcomeRetry ApplyOutcome = iota
	// OutcomeSkip means the per-doc budget is exhausted, or a put
	// conflict was superseded by a newer revision; the cursor should
	// advance past this change regardless.
	OutcomeSkip
)

// handleApplyError implements spec §4.5's classification table. A
// returned *FatalError must propagate out of Start(); anything else is
// local recovery (offline wait or a bumped per-doc error count).
func (e *Engine) handleApplyError(ctx context.Context, change *ChangeEntry, applyErr error) (ApplyOutcome, error) {
	if isNoSpace(applyErr) {
		return OutcomeSkip, &FatalError{Code: CodeDiskFull, Message: "No more disk space"}
	}
	if status, ok := remoteStatus(applyErr); ok && status == 413 {
		return OutcomeSkip, &FatalError{Code: CodeQuotaExceeded, Message: "Cozy is full"}
	}

	status, probeErr := e.probeRemoteDiskUsage(ctx)
	switch {
	case probeErr == nil && status == 400:
		return OutcomeSkip, &FatalError{Code: CodeRevoked, Message: "Client has been revoked"}
	case probeErr == nil && status == 403:
		return OutcomeSkip, &FatalError{Code: CodeForbidden, Message: "Client has wrong permissions"}
	case probeErr != nil || status != 0:
		if werr := e.waitOffline(ctx); werr != nil {
			return OutcomeSkip, werr
		}
		return OutcomeRetry, nil
	default:
		updated, err := e.updateErrors(change)
		if err != nil {
			slog.Warn("sync", "phase", "updateErrors", "id", change.Doc.ID, "error", err)
			return OutcomeSkip, nil
		}
		if updated == nil {
			// A newer revision superseded us; the next feed entry carries
			// authoritative state, so advance past this one.
			return OutcomeSkip, nil
		}
		// Keep the in-flight entry's doc in step with what was just
		// persisted, so a retry's own updateErrors call bumps from the
		// right rev/error count instead of racing itself into a
		// manufactured conflict.
		change.Doc.Rev = updated.Rev
		change.Doc.Errors = updated.Errors
		if poisoned(updated) {
			return OutcomeSkip, nil
		}
		return OutcomeRetry, nil
	}
}

// probeRemoteDiskUsage calls the remote side's DiskUsage and maps the
// error, if any, to an HTTP-ish status for the table above. A nil error
// with status 0 means "the probe itself succeeded with no complaint"; a
// nil error with a non-zero status means the probe failed with that
// status.
func (e *Engine) probeRemoteDiskUsage(ctx context.Context) (int, error) {
	if e.remote.DiskUsage == nil {
		return 0, nil
	}
	_, _, err := e.remote.DiskUsage(ctx)
	if err == nil {
		return 0, nil
	}
	if status, ok := remoteStatus(err); ok {
		return status, nil
	}
	return 0, err
}

// waitOffline is the offline retry loop from spec §4.5: emit "offline",
// poll DiskUsage every offlineProbeInterval, emit "online" and return
// once it succeeds.
//
// The loop does not read the engine's stopped flag; it returns ctx.Err()
// as soon as ctx is done, and Stop cancels the context Start runs under,
// so stopping the engine also ends the wait.
func (e *Engine) waitOffline(ctx context.Context) error {
	e.events.Publish(Event{Kind: EventOffline, At: e.now()})
	ticker := time.NewTicker(offlineProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if status, err := e.probeRemoteDiskUsage(ctx); err == nil && status == 0 {
				e.events.Publish(Event{Kind: EventOnline, At: e.now()})
				return nil
			}
		}
	}
}

// updateErrors increments the per-document retry count and persists it.
// It returns the persisted document, or nil (with a nil error) if a
// newer revision raced in ahead of us. The caller gates on poisoned() to
// decide whether to retry or give up (spec §4.5 and §7).
func (e *Engine) updateErrors(change *ChangeEntry) (*Metadata, error) {
	doc := change.Doc.Clone()
	doc.Errors++

	_, err := e.store.Put(doc)
	if err == nil {
		return doc, nil
	}
	if errors.Is(err, ErrConflict) {
		return nil, nil
	}
	return nil, fmt.Errorf("update errors for %s: %w", doc.ID, err)
}

// poisoned reports whether a document has exhausted its retry budget.
func poisoned(doc *Metadata) bool {
	return doc.Errors >= maxDocErrors
}
