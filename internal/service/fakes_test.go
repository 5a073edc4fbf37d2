package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/queue"
	"github.com/iliyamo/utility-audit-portal/internal/repository"
	"github.com/iliyamo/utility-audit-portal/internal/utils"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// memUsers, memSessions, memProfiles and memRoles back AuthService in tests.
type memUsers struct {
	byID      map[string]model.User
	deleteErr error
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]model.User{}} }

func (m *memUsers) add(email, password string) model.User {
	hash, _ := utils.HashPassword(password, bcrypt.MinCost)
	u := model.User{ID: uuid.NewString(), Email: repository.NormalizeEmail(email), PasswordHash: hash}
	m.byID[u.ID] = u
	return u
}

func (m *memUsers) Create(_ context.Context, email, password string, _ int) (model.User, error) {
	if _, err := m.GetByEmail(context.Background(), email); err == nil {
		return model.User{}, repository.ErrEmailExists
	}
	return m.add(email, password), nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	for _, u := range m.byID {
		if u.Email == repository.NormalizeEmail(email) {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.byID, id)
	return nil
}

type memSession struct {
	userID  string
	hash    string
	exp     time.Time
	revoked bool
}

type memSessions struct {
	rows      map[string]*memSession
	revokeErr error
}

func newMemSessions() *memSessions { return &memSessions{rows: map[string]*memSession{}} }

func (m *memSessions) StoreRefresh(_ context.Context, userID, hash string, exp time.Time) (string, error) {
	id := uuid.NewString()
	m.rows[id] = &memSession{userID: userID, hash: hash, exp: exp}
	return id, nil
}

func (m *memSessions) ValidateRefresh(_ context.Context, hash string) (string, string, error) {
	for id, r := range m.rows {
		if r.hash == hash && !r.revoked && time.Now().Before(r.exp) {
			return id, r.userID, nil
		}
	}
	return "", "", repository.ErrNotFound
}

func (m *memSessions) IsActive(_ context.Context, id string) (bool, error) {
	r, ok := m.rows[id]
	return ok && !r.revoked && time.Now().Before(r.exp), nil
}

func (m *memSessions) RevokeByHash(_ context.Context, hash string) error {
	for _, r := range m.rows {
		if r.hash == hash {
			r.revoked = true
		}
	}
	return nil
}

func (m *memSessions) RevokeByID(_ context.Context, id string) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	if r, ok := m.rows[id]; ok {
		r.revoked = true
	}
	return nil
}

type memProfiles struct {
	rows  map[string]string
	calls int
}

func newMemProfiles() *memProfiles { return &memProfiles{rows: map[string]string{}} }

func (m *memProfiles) EnsureExists(_ context.Context, id, email string) error {
	m.calls++
	if _, ok := m.rows[id]; !ok {
		m.rows[id] = email
	}
	return nil
}

type memRoles struct {
	rows      map[string]model.Role
	lookups   int
	assignErr error
}

func newMemRoles() *memRoles { return &memRoles{rows: map[string]model.Role{}} }

func (m *memRoles) Resolve(_ context.Context, id string) (model.Role, error) {
	m.lookups++
	if r, ok := m.rows[id]; ok {
		return r, nil
	}
	return model.RoleNone, nil
}

func (m *memRoles) Assign(_ context.Context, id string, r model.Role) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	m.rows[id] = r
	return nil
}

func (m *memRoles) CountOwners(context.Context) (int, error) {
	n := 0
	for _, r := range m.rows {
		if r == model.RoleOwner {
			n++
		}
	}
	return n, nil
}

// memReports and memMetrics back ReportService in tests.
type memReports struct {
	rows      map[string]*model.Report
	createErr error
	seq       int
}

func newMemReports() *memReports { return &memReports{rows: map[string]*model.Report{}} }

func (m *memReports) Create(_ context.Context, rep *model.Report) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	rep.ID = uuid.NewString()
	rep.UploadedAt = time.Unix(int64(m.seq), 0).UTC()
	cp := *rep
	m.rows[rep.ID] = &cp
	return nil
}

func (m *memReports) GetByID(_ context.Context, id string) (*model.Report, error) {
	r, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memReports) ListAll(ctx context.Context) ([]*model.Report, error) {
	return m.filter(func(*model.Report) bool { return true }), nil
}

func (m *memReports) ListByClient(_ context.Context, clientID string) ([]*model.Report, error) {
	return m.filter(func(r *model.Report) bool { return r.ClientID == clientID }), nil
}

func (m *memReports) filter(keep func(*model.Report) bool) []*model.Report {
	out := []*model.Report{}
	for _, r := range m.rows {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out
}

type memMetrics struct {
	rows []model.MetricSample
}

func (m *memMetrics) Create(_ context.Context, s *model.MetricSample) error {
	s.ID = uuid.NewString()
	m.rows = append(m.rows, *s)
	return nil
}

func (m *memMetrics) ListByReport(_ context.Context, reportID string) ([]model.MetricSample, error) {
	out := []model.MetricSample{}
	for _, r := range m.rows {
		if r.ReportID == reportID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MeasurementDate.Before(out[j].MeasurementDate) })
	return out, nil
}

type staticRoster []model.RosterEntry

func (r staticRoster) ListClients(context.Context) ([]model.RosterEntry, error) { return r, nil }

// memLeads and fakeCRM back LeadService in tests.
type memLeads struct {
	audits    []*model.AuditRequest
	inquiries []*model.SubscriptionInquiry
	contacts  []*model.ContactMessage
	relayed   map[string]string
	createErr error
}

func newMemLeads() *memLeads { return &memLeads{relayed: map[string]string{}} }

func (m *memLeads) CreateAudit(_ context.Context, a *model.AuditRequest) error {
	if m.createErr != nil {
		return m.createErr
	}
	a.ID = uuid.NewString()
	m.audits = append(m.audits, a)
	return nil
}

func (m *memLeads) CreateInquiry(_ context.Context, q *model.SubscriptionInquiry) error {
	q.ID = uuid.NewString()
	m.inquiries = append(m.inquiries, q)
	return nil
}

func (m *memLeads) CreateContact(_ context.Context, c *model.ContactMessage) error {
	c.ID = uuid.NewString()
	m.contacts = append(m.contacts, c)
	return nil
}

func (m *memLeads) MarkRelayed(_ context.Context, formType, id string) error {
	m.relayed[id] = formType
	return nil
}

type crmCall struct {
	formType string
	data     map[string]any
}

type fakeCRM struct {
	calls []crmCall
	err   error
}

func (f *fakeCRM) Submit(_ context.Context, formType string, data map[string]any) (map[string]any, error) {
	f.calls = append(f.calls, crmCall{formType: formType, data: data})
	if f.err != nil {
		return nil, f.err
	}
	return map[string]any{"id": "rec1"}, nil
}

var errBoom = errors.New("boom")
