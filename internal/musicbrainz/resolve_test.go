package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu      sync.Mutex
	calls   map[Method]int
	discID  func(call int) ([]Release, error)
	barcode func(call int) ([]Release, error)
	isrc    func(call int) ([]Release, error)
}

func (f *fakeService) record(m Method) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[Method]int)
	}
	f.calls[m]++
	return f.calls[m]
}

func (f *fakeService) count(m Method) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[m]
}

func respond(fn func(int) ([]Release, error), call int) ([]Release, error) {
	if fn == nil {
		return nil, nil
	}
	return fn(call)
}

func (f *fakeService) LookupByDiscID(ctx context.Context, discID string) ([]Release, error) {
	return respond(f.discID, f.record(MethodDiscID))
}

func (f *fakeService) SearchByBarcode(ctx context.Context, barcode string) ([]Release, error) {
	return respond(f.barcode, f.record(MethodBarcode))
}

func (f *fakeService) SearchByISRCs(ctx context.Context, isrcs []string) ([]Release, error) {
	return respond(f.isrc, f.record(MethodISRC))
}

func returns(releases ...Release) func(int) ([]Release, error) {
	return func(int) ([]Release, error) { return releases, nil }
}

func fails(err error) func(int) ([]Release, error) {
	return func(int) ([]Release, error) { return nil, err }
}

var fullQuery = Query{
	DiscID: "Vuu9VmPH.56sIW2cEyRZ.rQw8KY-",
	UPC:    "0886446672632",
	ISRCs:  []string{"USRC11234567", "USRC11234568"},
}

func newTestResolver(svc Service) *Resolver {
	return NewResolver(svc, WithRetryDelay(time.Millisecond))
}

func TestResolve_DiscIDFirst(t *testing.T) {
	svc := &fakeService{
		discID:  returns(Release{MBID: "a"}),
		barcode: returns(Release{MBID: "b"}),
		isrc:    returns(Release{MBID: "c"}),
	}

	res, err := newTestResolver(svc).Resolve(context.Background(), fullQuery)
	require.NoError(t, err)

	assert.Equal(t, OutcomeMatched, res.Outcome)
	assert.Equal(t, MethodDiscID, res.Method)
	assert.Equal(t, fullQuery.DiscID, res.DiscID)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "a", res.Matches[0].MBID)
	assert.Len(t, res.Attempts, 1)
	assert.Equal(t, 0, svc.count(MethodBarcode))
	assert.Equal(t, 0, svc.count(MethodISRC))
}

func TestResolve_FallsThroughInOrder(t *testing.T) {
	svc := &fakeService{
		barcode: returns(Release{MBID: "b"}),
		isrc:    returns(Release{MBID: "c"}),
	}

	res, err := newTestResolver(svc).Resolve(context.Background(), fullQuery)
	require.NoError(t, err)

	assert.Equal(t, MethodBarcode, res.Method)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, MethodDiscID, res.Attempts[0].Method)
	assert.Equal(t, 0, res.Attempts[0].Matches)
	assert.Equal(t, MethodBarcode, res.Attempts[1].Method)
	assert.Equal(t, 0, svc.count(MethodISRC))
}

func TestResolve_SkipsMethodsWithoutInput(t *testing.T) {
	svc := &fakeService{isrc: returns(Release{MBID: "c"})}

	res, err := newTestResolver(svc).Resolve(context.Background(), Query{ISRCs: []string{"USRC11234567"}})
	require.NoError(t, err)

	assert.Equal(t, MethodISRC, res.Method)
	require.Len(t, res.Attempts, 3)
	assert.True(t, res.Attempts[0].Skipped)
	assert.True(t, res.Attempts[1].Skipped)
	assert.Equal(t, 0, svc.count(MethodDiscID))
	assert.Equal(t, 0, svc.count(MethodBarcode))
}

func TestResolve_Exhaustive(t *testing.T) {
	svc := &fakeService{
		discID:  returns(Release{MBID: "a"}),
		barcode: returns(Release{MBID: "a"}, Release{MBID: "b"}),
		isrc:    returns(Release{MBID: "c"}),
	}

	q := fullQuery
	q.Exhaustive = true
	res, err := newTestResolver(svc).Resolve(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, MethodDiscID, res.Method)
	assert.Len(t, res.Attempts, 3)
	var ids []string
	for _, m := range res.Matches {
		ids = append(ids, m.MBID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestResolve_NoMatchIsNotAnError(t *testing.T) {
	svc := &fakeService{}

	res, err := newTestResolver(svc).Resolve(context.Background(), fullQuery)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Empty(t, res.Matches)
	assert.Empty(t, res.Method)
	assert.Len(t, res.Attempts, 3)
}

func TestResolve_RetriesExactlyOnce(t *testing.T) {
	svc := &fakeService{discID: fails(errors.New("connection reset"))}

	res, err := newTestResolver(svc).Resolve(context.Background(), Query{DiscID: fullQuery.DiscID})
	require.ErrorIs(t, err, ErrLookupUnavailable)
	require.NotNil(t, res)

	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.Equal(t, 2, svc.count(MethodDiscID))
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, 2, res.Attempts[0].Tries)
	assert.Contains(t, res.Attempts[0].Error, "connection reset")
}

func TestResolve_RetryRecovers(t *testing.T) {
	svc := &fakeService{discID: func(call int) ([]Release, error) {
		if call == 1 {
			return nil, errors.New("timeout")
		}
		return []Release{{MBID: "a"}}, nil
	}}

	res, err := newTestResolver(svc).Resolve(context.Background(), fullQuery)
	require.NoError(t, err)
	assert.Equal(t, MethodDiscID, res.Method)
	assert.Equal(t, 2, res.Attempts[0].Tries)
}

func TestResolve_ClientErrorNotRetried(t *testing.T) {
	svc := &fakeService{discID: fails(&StatusError{Op: "disc lookup", Code: http.StatusBadRequest})}

	_, err := newTestResolver(svc).Resolve(context.Background(), Query{DiscID: "x"})
	require.ErrorIs(t, err, ErrLookupUnavailable)
	assert.Equal(t, 1, svc.count(MethodDiscID))
}

func TestResolve_FailureThenMatch(t *testing.T) {
	svc := &fakeService{
		discID:  fails(errors.New("boom")),
		barcode: returns(Release{MBID: "b"}),
	}

	res, err := newTestResolver(svc).Resolve(context.Background(), fullQuery)
	require.NoError(t, err, "a later match wins over an earlier failure")
	assert.Equal(t, OutcomeMatched, res.Outcome)
	assert.Equal(t, MethodBarcode, res.Method)
	assert.NotEmpty(t, res.Attempts[0].Error)
}

func TestResolve_CancelledContext(t *testing.T) {
	svc := &fakeService{discID: returns(Release{MBID: "a"})}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestResolver(svc).Resolve(ctx, fullQuery)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, 0, svc.count(MethodDiscID))
}

func TestResolve_RanksByTrackCount(t *testing.T) {
	svc := &fakeService{discID: returns(
		Release{MBID: "box", TrackCount: 38, Year: 2017},
		Release{MBID: "orig", TrackCount: 5, Year: 1994},
		Release{MBID: "reissue", TrackCount: 5, Year: 2004},
	)}

	q := fullQuery
	q.TrackCount = 5
	res, err := newTestResolver(svc).Resolve(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, res.Matches, 3)
	assert.Equal(t, "reissue", res.Matches[0].MBID)
	assert.Equal(t, "orig", res.Matches[1].MBID)
	assert.Equal(t, "box", res.Matches[2].MBID)
}

func TestResolve_CollapsesConcurrentQueries(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	svc := &fakeService{discID: func(int) ([]Release, error) {
		once.Do(func() { close(entered) })
		<-release
		return []Release{{MBID: "a"}}, nil
	}}
	r := newTestResolver(svc)

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = r.Resolve(context.Background(), fullQuery)
	}()
	<-entered
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = r.Resolve(context.Background(), fullQuery)
	}()
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, svc.count(MethodDiscID))
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.Equal(t, results[0].Matches, results[1].Matches)
}

func TestResolve_RetriesWrappedDeadline(t *testing.T) {
	svc := &fakeService{discID: fails(fmt.Errorf("disc lookup: %w", context.DeadlineExceeded))}

	_, err := newTestResolver(svc).Resolve(context.Background(), Query{DiscID: "x"})
	require.ErrorIs(t, err, ErrLookupUnavailable)
	assert.Equal(t, 2, svc.count(MethodDiscID), "a request timeout is transient while the caller is live")
}

func TestResolve_RetriesRequestTimeout(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(recordingJSON))
	}, WithTimeout(100*time.Millisecond))

	res, err := newTestResolver(c).Resolve(context.Background(), Query{ISRCs: []string{"USRC11234567"}})
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, res.Outcome)
	assert.Equal(t, MethodISRC, res.Method)
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, 2, res.Attempts[2].Tries)
	assert.Equal(t, int32(2), calls.Load())
}

// blockingService answers disc ID lookups only once release is closed,
// or fails when the request context ends first.
type blockingService struct {
	fakeService
	entered chan struct{}
	release chan struct{}
}

func (b *blockingService) LookupByDiscID(ctx context.Context, discID string) ([]Release, error) {
	if b.record(MethodDiscID) == 1 {
		close(b.entered)
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.release:
		return []Release{{MBID: "a"}}, nil
	}
}

func TestResolve_OneCallerCancellingDoesNotFailOthers(t *testing.T) {
	svc := &blockingService{entered: make(chan struct{}), release: make(chan struct{})}
	r := newTestResolver(svc)
	q := Query{DiscID: fullQuery.DiscID}

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctxA, q)
		errA <- err
	}()
	<-svc.entered

	type outcome struct {
		res *Result
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := r.Resolve(context.Background(), q)
		doneB <- outcome{res, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)
	close(svc.release)

	b := <-doneB
	require.NoError(t, b.err)
	require.NotNil(t, b.res)
	assert.Equal(t, OutcomeMatched, b.res.Outcome)
	assert.Equal(t, 1, svc.count(MethodDiscID))
}
