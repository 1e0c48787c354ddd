package table

import (
	"context"
	"sync"
	"time"
)

// Row 表格中的一行，字段由后端决定
type Row = map[string]any

// Query 一次分页请求的参数
type Query struct {
	Endpoint string
	Search   string
	Page     int
	PerPage  int
}

// Page 分页结果
type Page struct {
	Data  []Row
	Total int
}

// Fetcher 拉取一页数据
type Fetcher interface {
	Fetch(ctx context.Context, q Query) (*Page, error)
}

// FetcherFunc 函数形式的 Fetcher
type FetcherFunc func(ctx context.Context, q Query) (*Page, error)

func (f FetcherFunc) Fetch(ctx context.Context, q Query) (*Page, error) {
	return f(ctx, q)
}

// Phase 加载阶段
type Phase int

const (
	Idle Phase = iota
	Loading
	Loaded
	Errored
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// State 加载器状态快照；Errored 时 Data 仍是上一次成功的结果
type State struct {
	Query      Query
	Data       []Row
	Total      int
	Phase      Phase
	Error      string
	Generation uint64
}

func (s State) Loading() bool {
	return s.Phase == Loading
}

// TotalPages 至少为 1
func (s State) TotalPages() int {
	if s.Query.PerPage <= 0 || s.Total <= 0 {
		return 1
	}
	return (s.Total + s.Query.PerPage - 1) / s.Query.PerPage
}

// Options 加载器配置
type Options struct {
	Debounce time.Duration
	PerPage  int
	// ErrorMessage 把错误转换为展示给用户的文字
	ErrorMessage func(error) string
	// Observer 每次请求结束回调，被取代的请求不回调
	Observer func(q Query, elapsed time.Duration, err error)
}

const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultPerPage  = 10
)

func (o Options) withDefaults() Options {
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.PerPage <= 0 {
		o.PerPage = DefaultPerPage
	}
	if o.ErrorMessage == nil {
		o.ErrorMessage = func(err error) string { return err.Error() }
	}
	return o
}

// Loader 分页数据加载器。
// 每次参数变化只发出一个请求，并取消上一个未完成的请求；
// 迟到的旧结果按代号丢弃，永远不会覆盖新结果。
type Loader struct {
	fetcher Fetcher
	opts    Options

	mu        sync.Mutex
	query     Query
	data      []Row
	total     int
	phase     Phase
	err       string
	gen       uint64
	cancel    context.CancelFunc
	timer     *time.Timer
	searchSeq uint64
	pending   string
	settled   chan struct{} // 非 nil 表示有防抖或请求未结束
	lastUsed  time.Time
	closed    bool
}

// NewLoader 创建空闲的加载器，调用 Refetch 发出第一次请求
func NewLoader(fetcher Fetcher, endpoint string, opts Options) *Loader {
	opts = opts.withDefaults()
	return &Loader{
		fetcher:  fetcher,
		opts:     opts,
		query:    Query{Endpoint: endpoint, Page: 1, PerPage: opts.PerPage},
		lastUsed: time.Now(),
	}
}

// SetSearch 防抖后生效，生效时页码回到 1。
// 以最后一次输入为准：防抖期间改回当前搜索词时，到期后不发请求。
func (l *Loader) SetSearch(search string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.touchLocked()

	if l.timer == nil && search == l.query.Search {
		return
	}
	if l.timer != nil {
		if search == l.pending {
			return
		}
		l.timer.Stop()
	}
	l.searchSeq++
	seq := l.searchSeq
	l.pending = search
	l.busyLocked()
	l.timer = time.AfterFunc(l.opts.Debounce, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed || seq != l.searchSeq {
			return
		}
		l.timer = nil
		if l.pending != l.query.Search {
			l.query.Search = l.pending
			l.query.Page = 1
			l.issueLocked()
			return
		}
		l.settleLocked()
	})
}

// SetPage 页码从 1 开始
func (l *Loader) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	l.update(func(q *Query) { q.Page = page })
}

// SetPageSize 修改每页条数，页码回到 1
func (l *Loader) SetPageSize(perPage int) {
	if perPage < 1 {
		return
	}
	l.update(func(q *Query) {
		q.PerPage = perPage
		q.Page = 1
	})
}

// SetEndpoint 切换数据源，页码回到 1
func (l *Loader) SetEndpoint(endpoint string) {
	l.update(func(q *Query) {
		q.Endpoint = endpoint
		q.Page = 1
	})
}

// Refetch 参数不变，重新请求
func (l *Loader) Refetch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.touchLocked()
	l.issueLocked()
}

// update 参数真正变化时才发请求
func (l *Loader) update(change func(q *Query)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.touchLocked()

	next := l.query
	change(&next)
	if next == l.query {
		return
	}
	l.query = next
	l.issueLocked()
}

func (l *Loader) issueLocked() {
	if l.cancel != nil {
		l.cancel()
	}
	l.gen++
	gen := l.gen
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.phase = Loading
	l.err = ""
	l.busyLocked()

	q := l.query
	go l.fetch(ctx, gen, q)
}

func (l *Loader) fetch(ctx context.Context, gen uint64, q Query) {
	start := time.Now()
	page, err := l.fetcher.Fetch(ctx, q)

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen || l.closed {
		return
	}
	l.cancel()
	l.cancel = nil

	if l.opts.Observer != nil {
		l.opts.Observer(q, time.Since(start), err)
	}
	switch {
	case err != nil:
		l.phase = Errored
		l.err = l.opts.ErrorMessage(err)
	case page == nil:
		l.data, l.total = nil, 0
		l.phase = Loaded
	default:
		l.data, l.total = page.Data, page.Total
		l.phase = Loaded
	}
	l.settleLocked()
}

func (l *Loader) busyLocked() {
	if l.settled == nil {
		l.settled = make(chan struct{})
	}
}

func (l *Loader) settleLocked() {
	if l.timer != nil || l.cancel != nil || l.settled == nil {
		return
	}
	close(l.settled)
	l.settled = nil
}

func (l *Loader) touchLocked() {
	l.lastUsed = time.Now()
}

// State 当前状态快照
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

func (l *Loader) stateLocked() State {
	return State{
		Query:      l.query,
		Data:       l.data,
		Total:      l.total,
		Phase:      l.phase,
		Error:      l.err,
		Generation: l.gen,
	}
}

// Wait 等待防抖与请求全部结束后返回状态，ctx 结束时返回当时的状态
func (l *Loader) Wait(ctx context.Context) (State, error) {
	for {
		l.mu.Lock()
		ch := l.settled
		if ch == nil {
			state := l.stateLocked()
			l.mu.Unlock()
			return state, nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return l.State(), ctx.Err()
		}
	}
}

// IdleSince 最后一次被使用的时间
func (l *Loader) IdleSince() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastUsed
}

// Close 取消未完成的请求与防抖，之后的调用全部忽略
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.settled != nil {
		close(l.settled)
		l.settled = nil
	}
}
