// Package navigation remembers where a visitor was so a reload can put
// them back: the current route with its query, and a scroll offset per
// path.  Everything here is best effort; a failed write or restore is
// logged and otherwise ignored.
package navigation

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/iliyamo/restaurant-storefront/internal/logger"
	"github.com/iliyamo/restaurant-storefront/internal/session"
)

// Restoration tells the client where to go after a reload.  Replace is
// always true: the redirect must not add a history entry.
type Restoration struct {
	Path         string            `json:"path"`
	Query        map[string]string `json:"query,omitempty"`
	URL          string            `json:"url"`
	ScrollOffset int               `json:"scrollOffset"`
	Replace      bool              `json:"replace"`
}

type State struct {
	mu      sync.Mutex
	sess    *session.Manager
	limiter *rate.Limiter
	pending map[string]int
	log     *logger.Logger
}

// New returns a State that writes scroll offsets at most once per
// throttle interval.  Offsets recorded in between are kept and written by
// the next allowed call or by Flush.
func New(sess *session.Manager, throttle time.Duration, log *logger.Logger) *State {
	if throttle <= 0 {
		throttle = 100 * time.Millisecond
	}
	return &State{
		sess:    sess,
		limiter: rate.NewLimiter(rate.Every(throttle), 1),
		pending: make(map[string]int),
		log:     logger.OrNop(log),
	}
}

// RecordRoute stores the current path and its query parameters.
func (s *State) RecordRoute(ctx context.Context, path string, query map[string]string) {
	if path == "" {
		return
	}
	_ = s.sess.SetCurrentPath(ctx, path, query)
}

// RecordScroll notes the scroll offset for path and reports whether it was
// written now rather than deferred by the throttle.
func (s *State) RecordScroll(ctx context.Context, path string, offset int) bool {
	if path == "" || offset < 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[path] = offset
	if !s.limiter.Allow() {
		return false
	}
	s.flushLocked(ctx)
	return true
}

// Flush writes any deferred scroll offsets.
func (s *State) Flush(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked(ctx)
}

func (s *State) flushLocked(ctx context.Context) {
	if len(s.pending) == 0 {
		return
	}
	if err := s.sess.SetScrollPositions(ctx, s.pending); err != nil {
		return
	}
	s.pending = make(map[string]int)
}

// Restore returns the stored location when it differs from the home path.
func (s *State) Restore(ctx context.Context) (Restoration, bool) {
	doc := s.sess.Load(ctx)
	if doc == nil || !s.sess.IsValid(doc) {
		return Restoration{}, false
	}
	nav := doc.Navigation
	if nav.CurrentPath == "" || nav.CurrentPath == s.sess.Policy().HomePath {
		return Restoration{}, false
	}
	r := Restoration{
		Path:         nav.CurrentPath,
		Query:        nav.QueryParams,
		URL:          nav.CurrentPath,
		ScrollOffset: nav.ScrollPositionsByPath[nav.CurrentPath],
		Replace:      true,
	}
	if len(nav.QueryParams) > 0 {
		v := url.Values{}
		for k, val := range nav.QueryParams {
			v.Set(k, val)
		}
		r.URL += "?" + v.Encode()
	}
	return r, true
}
