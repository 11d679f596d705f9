package search

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	// ErrSuperseded is returned by Submit when a newer submit replaced it.
	ErrSuperseded = errors.New("search superseded")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("search screen closed")
)

// View is a copy of the screen state.
type View struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
	Error   string   `json:"error,omitempty"`
	Loading bool     `json:"loading"`
	Notice  string   `json:"notice,omitempty"`
}

// Screen holds the search page state: the last results, the last error
// and at most one request in flight.
type Screen struct {
	searcher Searcher

	mu       sync.Mutex
	query    string
	results  []Result
	errMsg   string
	searched bool
	loading  bool
	cancel   context.CancelFunc
	gen      uint64
	closed   bool
}

// NewScreen creates a screen backed by s.
func NewScreen(s Searcher) *Screen {
	return &Screen{searcher: s}
}

// Submit runs query and blocks until it finishes. A submit issued while
// another is running cancels the earlier one, which then returns
// ErrSuperseded without touching the screen. On failure the previous
// results are kept and the error message is set.
func (s *Screen) Submit(ctx context.Context, query string) ([]Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if strings.TrimSpace(query) == "" {
		s.errMsg = MsgEmptyQuery
		s.mu.Unlock()
		return nil, &Error{Kind: KindValidation, Err: ErrEmptyQuery}
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loading = true
	s.query = query
	s.mu.Unlock()
	defer cancel()

	results, err := s.searcher.Search(ctx, query)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if gen != s.gen {
		return nil, ErrSuperseded
	}
	s.loading = false
	s.cancel = nil
	if err != nil {
		s.errMsg = Message(err)
		return nil, err
	}
	s.errMsg = ""
	s.searched = true
	s.results = results
	return results, nil
}

// Results returns the current results.
func (s *Screen) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// Result returns the result at index i.
func (s *Screen) Result(i int) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.results) {
		return Result{}, false
	}
	return s.results[i], true
}

// View returns a copy of the screen state.
func (s *Screen) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		Query:   s.query,
		Results: append([]Result(nil), s.results...),
		Error:   s.errMsg,
		Loading: s.loading,
	}
	if s.searched && len(s.results) == 0 && s.errMsg == "" {
		v.Notice = MsgNoResults
	}
	return v
}

// Close cancels the request in flight. Later submits fail with ErrClosed.
func (s *Screen) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.loading = false
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
