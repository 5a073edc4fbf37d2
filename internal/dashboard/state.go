// Package dashboard holds the view state behind a signed-in dashboard: the
// session user, the visible reports, the selected report and its metrics.
//
// State has a single writer protocol: every change goes through its
// methods, which serialize on one mutex and then notify subscribers with an
// immutable snapshot.  Each change is numbered, and a subscriber is never
// handed a snapshot older than one it has already seen.  Metrics fetches are tagged with a Ticket; a response
// whose ticket no longer matches the current selection is dropped, so a
// slow answer for a report the user has already left cannot overwrite the
// metrics of the report now on screen.
package dashboard

import (
	"context"
	"sort"
	"sync"

	"github.com/iliyamo/utility-audit-portal/internal/client"
	"github.com/iliyamo/utility-audit-portal/internal/model"
)

// MetricsFetcher is satisfied by *client.Client.
type MetricsFetcher interface {
	ListMetrics(ctx context.Context, reportID string) ([]model.MetricSample, error)
}

// Snapshot is a copy of the state at one point in time.
type Snapshot struct {
	User           *client.User
	Reports        []model.Report
	SelectedReport string
	Metrics        []model.MetricSample
	Loading        bool
	Err            error
}

// Role returns the signed-in role, RoleNone when signed out.
func (s Snapshot) Role() model.Role {
	if s.User == nil {
		return model.RoleNone
	}
	return s.User.Role
}

// Ticket identifies one metrics request.
type Ticket struct {
	Gen      uint64
	ReportID string
}

type State struct {
	mu      sync.Mutex
	snap    Snapshot
	gen     uint64
	seq     uint64
	subs    map[int]*subscriber
	nextSub int
}

func New() *State {
	return &State{subs: map[int]*subscriber{}}
}

// Subscribe registers fn for every change and returns a function that
// removes it.  fn is called without the state lock held.  Calls to fn never
// overlap; while fn is busy, later changes collapse into the newest one,
// which is delivered as soon as fn returns.
func (s *State) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = &subscriber{fn: fn}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked()
}

// SetSession replaces the user.  A nil user (sign-out) clears everything
// and invalidates outstanding metrics requests.
func (s *State) SetSession(u *client.User) {
	s.update(func() {
		if u == nil {
			s.gen++
			s.snap = Snapshot{}
			return
		}
		cp := *u
		s.snap.User = &cp
	})
}

// SetReports replaces the report list (newest first).  When the current
// selection is gone the most recent report is selected instead; the
// returned ticket is non-zero when the selection changed and metrics must
// be fetched for it.
func (s *State) SetReports(reports []model.Report) (Ticket, bool) {
	var (
		t       Ticket
		changed bool
	)
	s.update(func() {
		s.snap.Reports = append([]model.Report(nil), reports...)
		for _, r := range reports {
			if r.ID == s.snap.SelectedReport {
				return
			}
		}
		next := ""
		if len(reports) > 0 {
			next = reports[0].ID
		}
		t, changed = s.selectLocked(next), true
	})
	return t, changed
}

// Select makes reportID current and returns the ticket its metrics
// response must carry.
func (s *State) Select(reportID string) Ticket {
	var t Ticket
	s.update(func() { t = s.selectLocked(reportID) })
	return t
}

func (s *State) selectLocked(reportID string) Ticket {
	s.gen++
	s.snap.SelectedReport = reportID
	s.snap.Metrics = nil
	s.snap.Err = nil
	s.snap.Loading = reportID != ""
	return Ticket{Gen: s.gen, ReportID: reportID}
}

// ApplyMetrics stores the result of the request identified by t.  It
// reports false, leaving the state untouched, when t is stale.
func (s *State) ApplyMetrics(t Ticket, metrics []model.MetricSample, err error) bool {
	applied := false
	s.update(func() {
		if t.Gen != s.gen || t.ReportID != s.snap.SelectedReport {
			return
		}
		applied = true
		s.snap.Loading = false
		s.snap.Err = err
		if err != nil {
			s.snap.Metrics = nil
			return
		}
		ms := append([]model.MetricSample(nil), metrics...)
		sort.SliceStable(ms, func(i, j int) bool { return ms[i].MeasurementDate.Before(ms[j].MeasurementDate) })
		s.snap.Metrics = ms
	})
	return applied
}

// LoadMetrics selects reportID and fetches its metrics.  It returns false
// when another selection happened while the request was in flight.
func (s *State) LoadMetrics(ctx context.Context, f MetricsFetcher, reportID string) (bool, error) {
	t := s.Select(reportID)
	return s.Fetch(ctx, f, t)
}

// Fetch runs the metrics request for t and applies it.
func (s *State) Fetch(ctx context.Context, f MetricsFetcher, t Ticket) (bool, error) {
	if t.ReportID == "" {
		return true, nil
	}
	ms, err := f.ListMetrics(ctx, t.ReportID)
	return s.ApplyMetrics(t, ms, err), err
}

// update applies fn under the lock and notifies subscribers with the
// resulting snapshot.
func (s *State) update(fn func()) {
	s.mu.Lock()
	fn()
	s.seq++
	seq, snap := s.seq, s.copyLocked()
	subs := make([]*subscriber, 0, len(s.subs))
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, s.subs[id])
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(seq, snap)
	}
}

// subscriber keeps per-listener delivery order.  last is the sequence
// number most recently handed to fn; pending holds at most one newer
// snapshot waiting for fn to return.
type subscriber struct {
	fn func(Snapshot)

	mu         sync.Mutex
	busy       bool
	last       uint64
	pending    *Snapshot
	pendingSeq uint64
}

func (sub *subscriber) deliver(seq uint64, snap Snapshot) {
	sub.mu.Lock()
	if seq <= sub.last || seq <= sub.pendingSeq {
		sub.mu.Unlock()
		return
	}
	sub.pending, sub.pendingSeq = &snap, seq
	if sub.busy {
		// the goroutine already inside fn picks it up
		sub.mu.Unlock()
		return
	}
	sub.busy = true
	for sub.pending != nil {
		next := *sub.pending
		sub.last = sub.pendingSeq
		sub.pending = nil
		sub.mu.Unlock()
		sub.fn(next)
		sub.mu.Lock()
	}
	sub.busy = false
	sub.mu.Unlock()
}

func (s *State) copyLocked() Snapshot {
	cp := s.snap
	if s.snap.User != nil {
		u := *s.snap.User
		cp.User = &u
	}
	cp.Reports = append([]model.Report(nil), s.snap.Reports...)
	cp.Metrics = append([]model.MetricSample(nil), s.snap.Metrics...)
	return cp
}
