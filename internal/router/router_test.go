package router

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/utility-audit-portal/internal/handler"
	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/repository"
	"github.com/iliyamo/utility-audit-portal/internal/service"
	"github.com/iliyamo/utility-audit-portal/internal/web"
)

var tokens = map[string]service.Identity{
	"owner":  {UserID: "u-owner", Email: "o@x.io", SessionID: "s1"},
	"client": {UserID: "u-client", Email: "c@x.io", SessionID: "s2"},
}

var roles = map[string]model.Role{"u-owner": model.RoleOwner, "u-client": model.RoleClient}

type stubAuth struct{}

func (stubAuth) SignIn(context.Context, string, string) (*service.Session, error) {
	return nil, service.ErrInvalidCredentials
}
func (stubAuth) Refresh(context.Context, string) (*service.Session, error) {
	return nil, service.ErrNoSession
}
func (stubAuth) Verify(_ context.Context, tok string) (*service.Identity, error) {
	id, ok := tokens[tok]
	if !ok {
		return nil, service.ErrNoSession
	}
	return &id, nil
}
func (a stubAuth) GetSession(ctx context.Context, tok string) (*service.Identity, error) {
	return a.Verify(ctx, tok)
}
func (stubAuth) SignOut(context.Context, service.Identity) {}
func (stubAuth) ResolveRole(_ context.Context, id string) (model.Role, error) {
	if r, ok := roles[id]; ok {
		return r, nil
	}
	return model.RoleNone, nil
}
func (stubAuth) CreateClient(_ context.Context, _ service.Viewer, email, _ string) (model.RosterEntry, error) {
	return model.RosterEntry{ID: "u-new", Email: email}, nil
}

type stubReports struct{}

func (stubReports) ListReports(_ context.Context, v service.Viewer, _ string) ([]*model.Report, error) {
	return []*model.Report{{ID: "r1", Title: "Audit", ClientID: v.ID}}, nil
}
func (stubReports) UploadReport(_ context.Context, _ service.Viewer, in service.UploadReportInput) (*model.Report, error) {
	return &model.Report{ID: "r2", Title: in.Title, ClientID: in.ClientID}, nil
}
func (stubReports) ListMetrics(context.Context, service.Viewer, string) ([]model.MetricSample, error) {
	return []model.MetricSample{}, nil
}
func (stubReports) AddMetric(_ context.Context, _ service.Viewer, id string, _ service.MetricInput) (*model.MetricSample, error) {
	return &model.MetricSample{ID: "m1", ReportID: id}, nil
}
func (stubReports) ResolveClientRoster(context.Context, service.Viewer) ([]model.RosterEntry, error) {
	return []model.RosterEntry{}, nil
}
func (stubReports) OpenReportFile(context.Context, service.Viewer, string) (*service.ReportFile, error) {
	return nil, repository.ErrNotFound
}

type stubLeads struct{}

func (stubLeads) SubmitAudit(context.Context, service.AuditInput) (*model.AuditRequest, error) {
	return &model.AuditRequest{ID: "a1"}, nil
}
func (stubLeads) SubmitInquiry(context.Context, service.InquiryInput) (*model.SubscriptionInquiry, error) {
	return &model.SubscriptionInquiry{ID: "i1"}, nil
}
func (stubLeads) SubmitContact(context.Context, service.ContactInput) (*model.ContactMessage, error) {
	return &model.ContactMessage{ID: "c1"}, nil
}
func (stubLeads) ListUploads(context.Context) ([]model.StoredObject, error) {
	return []model.StoredObject{}, nil
}

type stubChat struct{}

func (stubChat) Complete(context.Context, string) (string, error) { return "pong", nil }

type stubCRM struct{}

func (stubCRM) Submit(context.Context, string, map[string]any) (map[string]any, error) {
	return map[string]any{}, nil
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	e := echo.New()
	r, err := web.New()
	require.NoError(t, err)
	e.Renderer = r

	auth := handler.NewAuthHandler(stubAuth{}, false)
	g := Guards{Sessions: stubAuth{}, Roles: stubAuth{}}
	RegisterRoutes(e, nil)
	RegisterAuth(e, auth, g)
	RegisterReports(e, handler.NewReportHandler(stubReports{}), auth, g)
	RegisterLeads(e, handler.NewLeadHandler(stubLeads{}), g)
	RegisterFunctions(e, handler.NewFunctionHandler(stubChat{}, stubCRM{}), g)
	RegisterPages(e, handler.NewPageHandler(auth, stubReports{}, stubLeads{}), g)
	return e
}

func serve(e *echo.Echo, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_APIAccess(t *testing.T) {
	e := newServer(t)

	cases := []struct {
		method, path, token string
		status              int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/api/v1/auth/session", "", http.StatusOK},
		{http.MethodGet, "/api/v1/me", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/me", "client", http.StatusOK},
		{http.MethodGet, "/api/v1/reports", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/reports", "client", http.StatusOK},
		{http.MethodGet, "/api/v1/reports/r1/metrics", "client", http.StatusOK},
		{http.MethodGet, "/api/v1/reports/r1/file", "owner", http.StatusNotFound},
		{http.MethodGet, "/api/v1/owner/clients", "client", http.StatusForbidden},
		{http.MethodGet, "/api/v1/owner/clients", "owner", http.StatusOK},
		{http.MethodGet, "/api/v1/uploads", "", http.StatusOK},
	}
	for _, tc := range cases {
		rec := serve(e, tc.method, tc.path, tc.token, nil)
		assert.Equal(t, tc.status, rec.Code, "%s %s as %q", tc.method, tc.path, tc.token)
	}
}

func TestRoutes_OwnerWrites(t *testing.T) {
	e := newServer(t)

	body := `{"electricity_usage":"1","water_usage":"2","electricity_savings_percentage":"3","water_savings_percentage":"4"}`
	rec := serve(e, http.MethodPost, "/api/v1/owner/reports/r1/metrics", "client", strings.NewReader(body))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(e, http.MethodPost, "/api/v1/owner/reports/r1/metrics", "owner", strings.NewReader(body))
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(e, http.MethodPost, "/api/v1/owner/clients", "owner", strings.NewReader(`{"email":"n@x.io","password":"longenough"}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRoutes_FunctionsAllowAnyOrigin(t *testing.T) {
	e := newServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/functions/v1/chat", nil)
	req.Header.Set(echo.HeaderOrigin, "https://elsewhere.example")
	req.Header.Set(echo.HeaderAccessControlRequestMethod, http.MethodPost)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))

	rec = serve(e, http.MethodPost, "/functions/v1/chat", "", strings.NewReader(`{"message":"ping"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"reply":"pong"}}`, rec.Body.String())
}

func TestRoutes_Pages(t *testing.T) {
	e := newServer(t)

	for _, p := range []string{"/", "/about", "/contact", "/login", "/stats", "/uploads"} {
		rec := serve(e, http.MethodGet, p, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, p)
		assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html", p)
	}

	rec := serve(e, http.MethodGet, "/owner-dashboard", "", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = serve(e, http.MethodGet, "/client-dashboard", "owner", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code, "owner is not a client")

	rec = serve(e, http.MethodGet, "/client-dashboard", "client", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(e, http.MethodGet, "/pricing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
