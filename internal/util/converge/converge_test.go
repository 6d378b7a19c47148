package converge

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/harvester-e2e/internal/document"
)

// progressFetch returns a fetch whose n-th call reports status.progress = n.
func progressFetch(calls *int) Fetch {
	return func(_ context.Context) (int, document.Document, error) {
		*calls++
		doc := document.Document{"status": map[string]any{"progress": int64(*calls)}}
		return http.StatusOK, doc, nil
	}
}

func progressAtLeast(n int64) Predicate {
	return func(code int, doc document.Document) (bool, error) {
		p, _ := doc.GetInt64("status.progress")
		return code == http.StatusOK && p >= n, nil
	}
}

func TestAwaitCondition_ImmediateSuccess(t *testing.T) {
	t.Parallel()

	calls := 0
	start := time.Now()
	doc, err := AwaitCondition(context.Background(), progressFetch(&calls), progressAtLeast(1), time.Hour, 2*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Second, "an immediate match must not sleep")
	p, _ := doc.GetInt64("status.progress")
	assert.Equal(t, int64(1), p)
}

func TestAwaitCondition_SuccessAfterN(t *testing.T) {
	t.Parallel()

	calls := 0
	doc, err := AwaitCondition(context.Background(), progressFetch(&calls), progressAtLeast(4), time.Millisecond, 5*time.Second)

	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	p, _ := doc.GetInt64("status.progress")
	assert.Equal(t, int64(4), p, "the document that satisfied the predicate is returned")
}

func TestAwaitCondition_NeverTrue(t *testing.T) {
	t.Parallel()

	calls := 0
	p := New(5*time.Millisecond, 60*time.Millisecond, WithDescription("image default/img to download"))
	out := p.Poll(context.Background(), progressFetch(&calls), progressAtLeast(1_000_000))

	assert.Equal(t, TimedOut, out.Kind)
	assert.Equal(t, calls, out.Attempts)
	assert.GreaterOrEqual(t, calls, 2)

	var te *TimeoutError
	require.True(t, errors.As(out.Err, &te))
	assert.True(t, IsTimeout(out.Err))
	assert.False(t, IsFailed(out.Err))
	assert.Equal(t, 60*time.Millisecond, te.Timeout)
	assert.Equal(t, http.StatusOK, te.Code)

	last, _ := te.Doc.GetInt64("status.progress")
	assert.Equal(t, int64(calls), last, "timeout carries the last observation")
	assert.Contains(t, te.Error(), "image default/img to download")
	assert.Contains(t, te.Error(), "last status 200")
}

func TestAwaitCondition_PredicateErrorIsTerminal(t *testing.T) {
	t.Parallel()

	calls := 0
	fetch := func(_ context.Context) (int, document.Document, error) {
		calls++
		return http.StatusBadRequest, document.Document{"message": "invalid vlan"}, nil
	}
	pred := func(code int, _ document.Document) (bool, error) {
		if code == http.StatusBadRequest {
			return false, errors.New("bad request")
		}
		return code == http.StatusOK, nil
	}

	_, err := AwaitCondition(context.Background(), fetch, pred, time.Millisecond, time.Second)

	require.Error(t, err)
	assert.Equal(t, 1, calls, "no further fetch after a terminal predicate error")
	var fe *FailedError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusBadRequest, fe.Code)
	assert.Equal(t, "invalid vlan", fe.Doc.GetString("message"))
	assert.False(t, IsTimeout(err))
}

func TestAwaitCondition_TransportErrorsAreRetried(t *testing.T) {
	t.Parallel()

	calls := 0
	fetch := func(_ context.Context) (int, document.Document, error) {
		calls++
		if calls < 3 {
			return 0, nil, errors.New("connection refused")
		}
		return http.StatusOK, document.Document{"ok": true}, nil
	}
	pred := func(code int, _ document.Document) (bool, error) { return code == http.StatusOK, nil }

	doc, err := AwaitCondition(context.Background(), fetch, pred, time.Millisecond, 5*time.Second)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, doc.GetBool("ok"))
}

func TestAwaitCondition_TimeoutKeepsLastTransportError(t *testing.T) {
	t.Parallel()

	errRefused := errors.New("connection refused")
	fetch := func(_ context.Context) (int, document.Document, error) {
		return 0, nil, errRefused
	}
	pred := func(int, document.Document) (bool, error) { return true, nil }

	_, err := AwaitCondition(context.Background(), fetch, pred, 5*time.Millisecond, 30*time.Millisecond)

	require.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, errRefused)
	assert.Contains(t, err.Error(), "last error: connection refused")
}

func TestAwaitCondition_DeadlineDuringFetchIsNotLastError(t *testing.T) {
	t.Parallel()

	var calls int
	fetch := func(ctx context.Context) (int, document.Document, error) {
		calls++
		if calls == 1 {
			return http.StatusServiceUnavailable, document.Document{"message": "unavailable"}, nil
		}
		<-ctx.Done()
		return 0, nil, ctx.Err()
	}
	pred := func(code int, _ document.Document) (bool, error) { return code == http.StatusOK, nil }

	_, err := AwaitCondition(context.Background(), fetch, pred, 5*time.Millisecond, 40*time.Millisecond)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusServiceUnavailable, te.Code)
	assert.NoError(t, te.LastErr)
	assert.NotContains(t, err.Error(), "context deadline exceeded")
}

func TestAwaitCondition_StopEndsPolling(t *testing.T) {
	t.Parallel()

	calls := 0
	errUnauthorized := errors.New("401 unauthorized")
	fetch := func(_ context.Context) (int, document.Document, error) {
		calls++
		return 0, nil, Stop(errUnauthorized)
	}
	pred := func(int, document.Document) (bool, error) { return false, nil }

	_, err := AwaitCondition(context.Background(), fetch, pred, time.Millisecond, time.Second)

	assert.Equal(t, 1, calls)
	assert.True(t, IsFailed(err))
	assert.ErrorIs(t, err, errUnauthorized)
	assert.False(t, IsStop(err), "the stop marker is stripped from the failure")
}

func TestAwaitCondition_ParentCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	fetch := func(_ context.Context) (int, document.Document, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return http.StatusOK, nil, nil
	}
	pred := func(int, document.Document) (bool, error) { return false, nil }

	_, err := AwaitCondition(ctx, fetch, pred, time.Millisecond, time.Minute)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsTimeout(err), "cancellation is not a timeout")
}

func TestPoll_InvalidInterval(t *testing.T) {
	t.Parallel()

	calls := 0
	out := New(0, time.Second).Poll(context.Background(), progressFetch(&calls), progressAtLeast(1))

	assert.Equal(t, Failed, out.Kind)
	assert.Equal(t, 0, calls)
	assert.Error(t, out.Err)
}

type recordingObserver struct {
	mu       sync.Mutex
	attempts []int
	outcomes []Outcome
}

func (r *recordingObserver) ObserveAttempt(_ string, code int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, code)
}

func (r *recordingObserver) ObserveOutcome(_ string, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func TestPoll_ObserverAndLogger(t *testing.T) {
	t.Parallel()

	obs := &recordingObserver{}
	calls := 0
	p := New(time.Millisecond, 5*time.Second,
		WithDescription("network vlan-network-100"),
		WithLogger(testr.NewWithOptions(t, testr.Options{Verbosity: 1})),
		WithObserver(obs),
	)

	out := p.Poll(context.Background(), progressFetch(&calls), progressAtLeast(3))

	assert.Equal(t, Ready, out.Kind)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []int{200, 200, 200}, obs.attempts)
	require.Len(t, obs.outcomes, 1)
	assert.Equal(t, Ready, obs.outcomes[0].Kind)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "timeout", TimedOut.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}

func TestStop_Nil(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Stop(nil))
	assert.False(t, IsStop(errors.New("plain")))
}
