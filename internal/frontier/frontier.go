// Package frontier holds the live working set of one crawl run.
//
// A Frontier is not safe for concurrent use. It is owned by a single
// scheduler goroutine that applies fetch outcomes one at a time; fetch
// goroutines never touch it.
package frontier

import (
	"errors"
	"net/url"
	"sort"
	"strings"
)

// ErrNothingInFlight is returned by Complete when no fetch is outstanding.
var ErrNothingInFlight = errors.New("no fetch in flight")

// Frontier tracks visited URLs, pending work, in-flight fetches and the
// accumulated emails.
//
// Invariants:
//   - every URL that ever entered pending is in visited
//   - a URL enters pending at most once per run
//   - inFlight never goes negative and never exceeds the limit passed to Dispatch
type Frontier struct {
	visited map[string]struct{}

	// pending is a stack. The last URL enqueued is dispatched first.
	pending []string

	inFlight    int
	maxInFlight int
	dispatched  int

	emails map[string]struct{}
}

// New creates a Frontier with seed already pending and visited.
func New(seed string) *Frontier {
	f := &Frontier{
		visited: make(map[string]struct{}),
		pending: make([]string, 0, 16),
		emails:  make(map[string]struct{}),
	}
	f.Enqueue(seed)
	return f
}

// Normalize canonicalizes a URL for deduplication: the fragment is dropped,
// scheme and host are lowercased and an empty path becomes "/".
// Unparseable input is returned unchanged.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String()
}

// Enqueue adds rawURL to pending unless its normalized form was seen before.
// It reports whether the URL was added.
func (f *Frontier) Enqueue(rawURL string) bool {
	key := Normalize(rawURL)
	if _, seen := f.visited[key]; seen {
		return false
	}

	f.visited[key] = struct{}{}
	f.pending = append(f.pending, key)
	return true
}

// Seen reports whether rawURL was ever enqueued.
func (f *Frontier) Seen(rawURL string) bool {
	_, ok := f.visited[Normalize(rawURL)]
	return ok
}

// Dispatch pops the next pending URL and counts it as in flight.
// It returns false when nothing is pending or limit fetches are already
// outstanding. A limit below 1 is treated as 1.
func (f *Frontier) Dispatch(limit int) (string, bool) {
	if limit < 1 {
		limit = 1
	}
	if len(f.pending) == 0 || f.inFlight >= limit {
		return "", false
	}

	last := len(f.pending) - 1
	next := f.pending[last]
	f.pending = f.pending[:last]

	f.inFlight++
	f.dispatched++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	return next, true
}

// Complete records that one dispatched fetch finished, successfully or not.
func (f *Frontier) Complete() error {
	if f.inFlight == 0 {
		return ErrNothingInFlight
	}
	f.inFlight--
	return nil
}

// AddEmails merges emails into the result set and returns how many were new.
func (f *Frontier) AddEmails(emails []string) int {
	added := 0
	for _, e := range emails {
		if e == "" {
			continue
		}
		if _, ok := f.emails[e]; ok {
			continue
		}
		f.emails[e] = struct{}{}
		added++
	}
	return added
}

// Drain drops all pending work and returns how many URLs were dropped.
// Dropped URLs stay visited.
func (f *Frontier) Drain() int {
	n := len(f.pending)
	f.pending = f.pending[:0]
	return n
}

// Done reports whether the run is complete: nothing pending, nothing in flight.
func (f *Frontier) Done() bool {
	return len(f.pending) == 0 && f.inFlight == 0
}

// Emails returns the accumulated emails in sorted order.
func (f *Frontier) Emails() []string {
	out := make([]string, 0, len(f.emails))
	for e := range f.emails {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Stats returns a snapshot of the counters.
func (f *Frontier) Stats() Stats {
	return Stats{
		Visited:     len(f.visited),
		Pending:     len(f.pending),
		InFlight:    f.inFlight,
		MaxInFlight: f.maxInFlight,
		Dispatched:  f.dispatched,
		Emails:      len(f.emails),
	}
}

// Stats contains frontier counters.
type Stats struct {
	// Visited is the number of unique URLs ever enqueued.
	Visited int

	// Pending is the number of URLs waiting for dispatch.
	Pending int

	// InFlight is the number of outstanding fetches.
	InFlight int

	// MaxInFlight is the peak of InFlight over the run.
	MaxInFlight int

	// Dispatched is the number of fetches started.
	Dispatched int

	// Emails is the number of unique emails collected.
	Emails int
}
