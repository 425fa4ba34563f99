package syncengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNoSpaceErr struct{}

func (fakeNoSpaceErr) Error() string { return "no space left" }
func (fakeNoSpaceErr) NoSpace() bool { return true }

type fakeStatusErr struct{ code int }

func (e fakeStatusErr) Error() string   { return "remote status" }
func (e fakeStatusErr) StatusCode() int { return e.code }

func TestHandleApplyError_NoSpace_IsFatalDiskFull(t *testing.T) {
	e := testEngine(t, newMemStore())
	outcome, err := e.handleApplyError(context.Background(), &ChangeEntry{Doc: &Metadata{ID: "a"}}, fakeNoSpaceErr{})
	assert.Equal(t, OutcomeSkip, outcome)
	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, CodeDiskFull, fe.Code)
}

func TestHandleApplyError_413_IsFatalQuotaExceeded(t *testing.T) {
	e := testEngine(t, newMemStore())
	outcome, err := e.handleApplyError(context.Background(), &ChangeEntry{Doc: &Metadata{ID: "a"}}, fakeStatusErr{code: 413})
	assert.Equal(t, OutcomeSkip, outcome)
	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, CodeQuotaExceeded, fe.Code)
}

func TestHandleApplyError_ProbeReturns400_IsFatalRevoked(t *testing.T) {
	e := testEngine(t, newMemStore())
	e.remote.DiskUsage = func(ctx context.Context) (int64, int64, error) {
		return 0, 0, fakeStatusErr{code: 400}
	}
	outcome, err := e.handleApplyError(context.Background(), &ChangeEntry{Doc: &Metadata{ID: "a"}}, errors.New("write failed"))
	assert.Equal(t, OutcomeSkip, outcome)
	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, CodeRevoked, fe.Code)
}

func TestHandleApplyError_ProbeReturns403_IsFatalForbidden(t *testing.T) {
	e := testEngine(t, newMemStore())
	e.remote.DiskUsage = func(ctx context.Context) (int64, int64, error) {
		return 0, 0, fakeStatusErr{code: 403}
	}
	outcome, err := e.handleApplyError(context.Background(), &ChangeEntry{Doc: &Metadata{ID: "a"}}, errors.New("write failed"))
	assert.Equal(t, OutcomeSkip, outcome)
	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, CodeForbidden, fe.Code)
}

func TestHandleApplyError_ProbeErrorsWithoutStatus_BlocksOnOfflineWaitUntilCtxDone(t *testing.T) {
	e := testEngine(t, newMemStore())
	e.remote.DiskUsage = func(ctx context.Context) (int64, int64, error) {
		return 0, 0, errors.New("connection refused")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	outcome, err := e.handleApplyError(ctx, &ChangeEntry{Doc: &Metadata{ID: "a"}}, errors.New("write failed"))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "should block in waitOffline until ctx is done, not return immediately")
	assert.Equal(t, OutcomeSkip, outcome)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHandleApplyError_DefaultPath_RetriesUntilBudgetExhausted(t *testing.T) {
	store := newMemStore()
	rev, err := store.Put(&Metadata{ID: "a", Path: "a", DocType: DocTypeFile})
	require.NoError(t, err)

	e := testEngine(t, store)
	entry := &ChangeEntry{Doc: &Metadata{ID: "a", Path: "a", DocType: DocTypeFile, Rev: rev}}

	for i := 1; i < maxDocErrors; i++ {
		outcome, err := e.handleApplyError(context.Background(), entry, errors.New("transient"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeRetry, outcome, "attempt %d should retry, the budget isn't exhausted yet", i)
		assert.Equal(t, i, entry.Doc.Errors)
	}

	outcome, err := e.handleApplyError(context.Background(), entry, errors.New("transient"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkip, outcome, "exhausting the budget advances the cursor")
	assert.Equal(t, maxDocErrors, entry.Doc.Errors)

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.True(t, poisoned(got))
}

func TestHandleApplyError_DefaultPath_ConflictTreatedAsSuperseded(t *testing.T) {
	store := newMemStore()
	_, err := store.Put(&Metadata{ID: "a", Path: "a", DocType: DocTypeFile})
	require.NoError(t, err)

	e := testEngine(t, store)
	entry := &ChangeEntry{Doc: &Metadata{ID: "a", Path: "a", DocType: DocTypeFile, Rev: "999-stale"}}

	outcome, err := e.handleApplyError(context.Background(), entry, errors.New("transient"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkip, outcome, "a newer revision superseding us should advance past this change")
}

func TestPoisoned(t *testing.T) {
	assert.False(t, poisoned(&Metadata{Errors: 2}))
	assert.True(t, poisoned(&Metadata{Errors: 3}))
}
