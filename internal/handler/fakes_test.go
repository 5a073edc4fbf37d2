package handler

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/repository"
	"github.com/iliyamo/utility-audit-portal/internal/service"
)

type fakeAuth struct {
	sessions  map[string]service.Identity // access token -> identity
	roles     map[string]model.Role
	password  string
	signedOut []string
	created   []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		sessions: map[string]service.Identity{
			"owner-token":  {UserID: "u-owner", Email: "owner@x.io", SessionID: "s-owner"},
			"client-token": {UserID: "u-client", Email: "client@x.io", SessionID: "s-client"},
		},
		roles:    map[string]model.Role{"u-owner": model.RoleOwner, "u-client": model.RoleClient},
		password: "secret123",
	}
}

func (f *fakeAuth) SignIn(_ context.Context, email, password string) (*service.Session, error) {
	if password != f.password {
		return nil, service.ErrInvalidCredentials
	}
	for tok, id := range f.sessions {
		if id.Email == email {
			return &service.Session{
				User:            model.User{ID: id.UserID, Email: id.Email},
				Role:            f.roles[id.UserID],
				SessionID:       id.SessionID,
				AccessToken:     tok,
				AccessExpiresAt: time.Now().Add(time.Hour),
				RefreshToken:    "refresh-" + tok,
			}, nil
		}
	}
	if email == "norole@x.io" {
		return &service.Session{User: model.User{ID: "u-none", Email: email}, Role: model.RoleNone,
			SessionID: "s-none", AccessToken: "norole-token"}, nil
	}
	return nil, service.ErrInvalidCredentials
}

func (f *fakeAuth) Refresh(_ context.Context, raw string) (*service.Session, error) {
	tok := strings.TrimPrefix(raw, "refresh-")
	id, ok := f.sessions[tok]
	if !ok || tok == raw {
		return nil, service.ErrNoSession
	}
	return &service.Session{User: model.User{ID: id.UserID, Email: id.Email}, Role: f.roles[id.UserID],
		SessionID: id.SessionID, AccessToken: tok, RefreshToken: raw}, nil
}

func (f *fakeAuth) Verify(_ context.Context, tok string) (*service.Identity, error) {
	id, ok := f.sessions[tok]
	if !ok {
		return nil, service.ErrNoSession
	}
	return &id, nil
}

func (f *fakeAuth) GetSession(ctx context.Context, tok string) (*service.Identity, error) {
	return f.Verify(ctx, tok)
}

func (f *fakeAuth) SignOut(_ context.Context, id service.Identity) {
	f.signedOut = append(f.signedOut, id.SessionID)
	for tok, s := range f.sessions {
		if s.SessionID == id.SessionID {
			delete(f.sessions, tok)
		}
	}
}

func (f *fakeAuth) ResolveRole(_ context.Context, userID string) (model.Role, error) {
	if r, ok := f.roles[userID]; ok {
		return r, nil
	}
	return model.RoleNone, nil
}

func (f *fakeAuth) CreateClient(_ context.Context, v service.Viewer, email, _ string) (model.RosterEntry, error) {
	if !v.IsOwner() {
		return model.RosterEntry{}, repository.ErrForbidden
	}
	f.created = append(f.created, email)
	return model.RosterEntry{ID: "u-new", Email: email}, nil
}

type fakeReports struct {
	reports    []*model.Report
	metrics    map[string][]model.MetricSample
	roster     []model.RosterEntry
	lastMetric service.MetricInput
	uploaded   *service.UploadReportInput
	uploadBody string
	listErr    error
}

func newFakeReports() *fakeReports {
	path := "1700000000000-abc.pdf"
	return &fakeReports{
		reports: []*model.Report{
			{ID: "r2", Title: "March audit", ClientID: "u-client", FilePath: &path, UploadedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "r1", Title: "January audit", ClientID: "u-client", UploadedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "r0", Title: "Other client", ClientID: "u-other", UploadedAt: time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)},
		},
		metrics: map[string][]model.MetricSample{
			"r2": {{ID: "m1", ReportID: "r2", ElectricityUsage: 120.5, WaterSavingsPercentage: 8,
				MeasurementDate: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)}},
		},
		roster: []model.RosterEntry{{ID: "u-client", Email: "client@x.io"}},
	}
}

func (f *fakeReports) ListReports(_ context.Context, v service.Viewer, clientID string) ([]*model.Report, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if v.IsClient() {
		clientID = v.ID
	} else if !v.IsOwner() {
		return nil, repository.ErrForbidden
	}
	out := []*model.Report{}
	for _, r := range f.reports {
		if clientID == "" || r.ClientID == clientID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReports) UploadReport(_ context.Context, v service.Viewer, in service.UploadReportInput) (*model.Report, error) {
	if !v.IsOwner() {
		return nil, repository.ErrForbidden
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, &service.ValidationError{Field: "title", Msg: "is required"}
	}
	f.uploaded = &in
	if in.File != nil {
		b, _ := io.ReadAll(in.File.Body)
		f.uploadBody = string(b)
	}
	return &model.Report{ID: "r-new", Title: in.Title, ClientID: in.ClientID}, nil
}

func (f *fakeReports) ListMetrics(ctx context.Context, v service.Viewer, id string) ([]model.MetricSample, error) {
	if _, err := f.visible(v, id); err != nil {
		return nil, err
	}
	ms := f.metrics[id]
	if ms == nil {
		ms = []model.MetricSample{}
	}
	return ms, nil
}

func (f *fakeReports) AddMetric(_ context.Context, v service.Viewer, id string, in service.MetricInput) (*model.MetricSample, error) {
	if !v.IsOwner() {
		return nil, repository.ErrForbidden
	}
	f.lastMetric = in
	return &model.MetricSample{ID: "m-new", ReportID: id}, nil
}

func (f *fakeReports) ResolveClientRoster(_ context.Context, v service.Viewer) ([]model.RosterEntry, error) {
	if !v.IsOwner() {
		return nil, repository.ErrForbidden
	}
	return f.roster, nil
}

func (f *fakeReports) OpenReportFile(_ context.Context, v service.Viewer, id string) (*service.ReportFile, error) {
	r, err := f.visible(v, id)
	if err != nil {
		return nil, err
	}
	if r.FilePath == nil {
		return nil, repository.ErrNotFound
	}
	return &service.ReportFile{
		Body:        io.NopCloser(strings.NewReader("%PDF-1.4")),
		Filename:    service.DownloadName(r.Title, *r.FilePath),
		ContentType: "application/pdf",
		Size:        8,
	}, nil
}

func (f *fakeReports) visible(v service.Viewer, id string) (*model.Report, error) {
	for _, r := range f.reports {
		if r.ID != id {
			continue
		}
		if v.IsOwner() || (v.IsClient() && r.ClientID == v.ID) {
			return r, nil
		}
		return nil, repository.ErrNotFound
	}
	return nil, repository.ErrNotFound
}

type fakeLeads struct {
	audits   []service.AuditInput
	billName string
	inquiry  []service.InquiryInput
	contacts   []service.ContactInput
	uploads    []model.StoredObject
	uploadsErr error
}

func (f *fakeLeads) SubmitAudit(_ context.Context, in service.AuditInput) (*model.AuditRequest, error) {
	if strings.TrimSpace(in.FullName) == "" {
		return nil, &service.ValidationError{Field: "full_name", Msg: "is required"}
	}
	if in.File != nil {
		f.billName = in.File.Name
	}
	f.audits = append(f.audits, in)
	return &model.AuditRequest{ID: "a1", FullName: in.FullName, Email: in.Email, AuditType: in.AuditType}, nil
}

func (f *fakeLeads) SubmitInquiry(_ context.Context, in service.InquiryInput) (*model.SubscriptionInquiry, error) {
	f.inquiry = append(f.inquiry, in)
	return &model.SubscriptionInquiry{ID: "i1", FullName: in.FullName, InquiryType: in.InquiryType}, nil
}

func (f *fakeLeads) SubmitContact(_ context.Context, in service.ContactInput) (*model.ContactMessage, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, &service.ValidationError{Field: "message", Msg: "is required"}
	}
	f.contacts = append(f.contacts, in)
	return &model.ContactMessage{ID: "c1", Name: in.Name, Email: in.Email, Message: in.Message}, nil
}

func (f *fakeLeads) ListUploads(context.Context) ([]model.StoredObject, error) {
	if f.uploadsErr != nil {
		return nil, f.uploadsErr
	}
	return f.uploads, nil
}
