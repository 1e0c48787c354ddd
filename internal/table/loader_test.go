package table

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingFetcher 记录每次请求；delay 决定响应时间
type recordingFetcher struct {
	mu      sync.Mutex
	queries []Query
	delay   func(q Query) time.Duration
	fail    func(q Query) error
}

func (f *recordingFetcher) Fetch(ctx context.Context, q Query) (*Page, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(q)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(q); err != nil {
			return nil, err
		}
	}
	return &Page{Data: []Row{{"search": q.Search, "page": q.Page}}, Total: 42}, nil
}

func (f *recordingFetcher) calls() []Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Query(nil), f.queries...)
}

func waitState(t *testing.T, l *Loader) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	state, err := l.Wait(ctx)
	require.NoError(t, err)
	return state
}

func TestLoader_InitialLoad(t *testing.T) {
	f := &recordingFetcher{}
	l := NewLoader(f, "/roles", Options{PerPage: 25})
	defer l.Close()

	assert.Equal(t, Idle, l.State().Phase)
	l.Refetch()
	state := waitState(t, l)

	assert.Equal(t, Loaded, state.Phase)
	assert.Equal(t, 42, state.Total)
	assert.Equal(t, 2, state.TotalPages())
	assert.Equal(t, []Query{{Endpoint: "/roles", Page: 1, PerPage: 25}}, f.calls())
}

// 慢请求 R1 之后发出快请求 R2，最终数据只能是 R2
func TestLoader_LastRequestWins(t *testing.T) {
	f := &recordingFetcher{
		delay: func(q Query) time.Duration {
			if q.Page == 1 {
				return 300 * time.Millisecond
			}
			return 10 * time.Millisecond
		},
	}
	l := NewLoader(f, "/roles", Options{})
	defer l.Close()

	l.Refetch()  // R1
	l.SetPage(2) // R2
	state := waitState(t, l)

	assert.Equal(t, Loaded, state.Phase)
	require.Len(t, state.Data, 1)
	assert.Equal(t, 2, state.Data[0]["page"])

	// 等 R1 本该返回的时间过去，结果不变
	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 2, l.State().Data[0]["page"])
	assert.Len(t, f.calls(), 2)
}

func TestLoader_StaleResultIgnoredWhenFetcherIgnoresCancel(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	fetcher := FetcherFunc(func(ctx context.Context, q Query) (*Page, error) {
		if q.Page == 1 {
			<-release // 不理会 ctx
		}
		return &Page{Data: []Row{{"page": q.Page}}, Total: 1}, nil
	})
	l := NewLoader(fetcher, "/x", Options{})
	defer l.Close()

	l.Refetch()
	l.SetPage(3)
	state := waitState(t, l)
	assert.Equal(t, 3, state.Data[0]["page"])

	once.Do(func() { close(release) })
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, l.State().Data[0]["page"])
}

func TestLoader_SearchDebounced(t *testing.T) {
	f := &recordingFetcher{}
	l := NewLoader(f, "/brands", Options{Debounce: 50 * time.Millisecond})
	defer l.Close()

	l.Refetch()
	waitState(t, l)
	l.SetPage(3)
	waitState(t, l)

	l.SetSearch("a")
	l.SetSearch("ac")
	l.SetSearch("acm")
	assert.Len(t, f.calls(), 2)

	state := waitState(t, l)
	calls := f.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "acm", calls[2].Search)
	assert.Equal(t, 1, calls[2].Page)
	assert.Equal(t, "acm", state.Query.Search)

	// 相同的搜索词不再请求
	l.SetSearch("acm")
	waitState(t, l)
	assert.Len(t, f.calls(), 3)
}

func TestLoader_SearchRevertedDuringDebounce(t *testing.T) {
	f := &recordingFetcher{}
	l := NewLoader(f, "/brands", Options{Debounce: 50 * time.Millisecond})
	defer l.Close()

	l.Refetch()
	waitState(t, l)

	l.SetSearch("glob")
	l.SetSearch("")
	state := waitState(t, l)

	assert.Len(t, f.calls(), 1, "the cleared box never reaches the backend")
	assert.Equal(t, "", state.Query.Search)
}

func TestLoader_RepeatedSearchKeepsDebounce(t *testing.T) {
	f := &recordingFetcher{}
	l := NewLoader(f, "/brands", Options{Debounce: 50 * time.Millisecond})
	defer l.Close()

	l.Refetch()
	waitState(t, l)

	l.SetSearch("acme")
	l.SetSearch("acme")
	state := waitState(t, l)

	calls := f.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "acme", calls[1].Search)
	assert.Equal(t, "acme", state.Query.Search)
}

func TestLoader_NoRequestWithoutChange(t *testing.T) {
	f := &recordingFetcher{}
	l := NewLoader(f, "/brands", Options{PerPage: 10})
	defer l.Close()

	l.Refetch()
	waitState(t, l)
	l.SetPage(1)
	l.SetPageSize(10)
	l.SetEndpoint("/brands")
	waitState(t, l)
	assert.Len(t, f.calls(), 1)

	l.SetPageSize(50)
	state := waitState(t, l)
	assert.Equal(t, 50, state.Query.PerPage)
	assert.Len(t, f.calls(), 2)
}

func TestLoader_ErrorKeepsPreviousData(t *testing.T) {
	f := &recordingFetcher{
		fail: func(q Query) error {
			if q.Page == 2 {
				return errors.New("boom")
			}
			return nil
		},
	}
	l := NewLoader(f, "/models", Options{ErrorMessage: func(err error) string { return "Failed: " + err.Error() }})
	defer l.Close()

	l.Refetch()
	waitState(t, l)
	l.SetPage(2)
	state := waitState(t, l)

	assert.Equal(t, Errored, state.Phase)
	assert.Equal(t, "Failed: boom", state.Error)
	require.Len(t, state.Data, 1)
	assert.Equal(t, 1, state.Data[0]["page"])

	// 再次成功后错误清除
	l.SetPage(1)
	state = waitState(t, l)
	assert.Equal(t, Loaded, state.Phase)
	assert.Empty(t, state.Error)
}

func TestLoader_Observer(t *testing.T) {
	var mu sync.Mutex
	var observed []Query
	f := &recordingFetcher{}
	l := NewLoader(f, "/x", Options{Observer: func(q Query, _ time.Duration, _ error) {
		mu.Lock()
		observed = append(observed, q)
		mu.Unlock()
	}})
	defer l.Close()

	l.Refetch()
	waitState(t, l)
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, observed, 1)
}

func TestLoader_CloseCancelsInFlight(t *testing.T) {
	cancelled := make(chan struct{})
	fetcher := FetcherFunc(func(ctx context.Context, q Query) (*Page, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})
	l := NewLoader(fetcher, "/x", Options{})
	l.Refetch()
	l.Close()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("fetch was not cancelled")
	}
	state := waitState(t, l)
	assert.Equal(t, Loading, state.Phase)

	l.Refetch()
	assert.Equal(t, uint64(1), l.State().Generation)
}

func TestLoader_WaitHonoursContext(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, q Query) (*Page, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	l := NewLoader(fetcher, "/x", Options{})
	defer l.Close()
	l.Refetch()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	state, err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, state.Loading())
}
