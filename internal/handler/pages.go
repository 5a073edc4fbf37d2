package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/middleware"
	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/service"
	"github.com/iliyamo/utility-audit-portal/internal/web"
)

// PageHandler renders the browser-facing site.  Form posts use the
// post/redirect/get pattern; notices travel in the "notice" and "error"
// query parameters.
type PageHandler struct {
	Auth    *AuthHandler
	Reports ReportAPI
	Leads   LeadAPI
}

func NewPageHandler(auth *AuthHandler, reports ReportAPI, leads LeadAPI) *PageHandler {
	return &PageHandler{Auth: auth, Reports: reports, Leads: leads}
}

type stat struct {
	Label string
	Value string
}

var siteStats = []stat{
	{"Sites audited", "140+"},
	{"Average electricity savings", "18%"},
	{"Average water savings", "23%"},
	{"Meters under monitoring", "600+"},
}

type ownerView struct {
	Clients  []model.RosterEntry
	ClientID string
	Reports  []*model.Report
	Selected *model.Report
	Metrics  []model.MetricSample
}

type clientView struct {
	Reports  []*model.Report
	Selected *model.Report
	Metrics  []model.MetricSample
}

// page builds the template data.  The visitor is looked up from the
// context first (PageAuth routes) and from the cookie otherwise.
func (h *PageHandler) page(c echo.Context, title string, data any) web.Page {
	p := web.Page{
		Title:  title,
		Notice: c.QueryParam("notice"),
		Error:  c.QueryParam("error"),
		Data:   data,
	}
	if id := middleware.UserID(c); id != "" {
		p.User = &web.PageUser{ID: id, Email: middleware.Identity(c).Email, Role: middleware.RoleOf(c)}
		return p
	}
	raw := middleware.TokenFrom(c)
	if raw == "" {
		return p
	}
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()
	id, err := h.Auth.Auth.GetSession(ctx, raw)
	if err != nil {
		return p
	}
	role, err := h.Auth.Auth.ResolveRole(ctx, id.UserID)
	if err != nil {
		role = model.RoleNone
	}
	p.User = &web.PageUser{ID: id.UserID, Email: id.Email, Role: role}
	return p
}

func (h *PageHandler) render(c echo.Context, status int, name, title string, data any) error {
	return c.Render(status, name, h.page(c, title, data))
}

// redirectWith sends the browser to target with a notice or error message.
func redirectWith(c echo.Context, target, key, msg string) error {
	u, _ := url.Parse(target)
	q := u.Query()
	q.Set(key, msg)
	u.RawQuery = q.Encode()
	return c.Redirect(http.StatusSeeOther, u.String())
}

// userMessage turns a service error into text for the page.
func userMessage(err error, fallback string) string {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		return "Invalid email or password."
	}
	return fallback
}

func (h *PageHandler) Home(c echo.Context) error {
	return h.render(c, http.StatusOK, "home", "Home", nil)
}

func (h *PageHandler) About(c echo.Context) error {
	return h.render(c, http.StatusOK, "about", "About", nil)
}

func (h *PageHandler) Contact(c echo.Context) error {
	return h.render(c, http.StatusOK, "contact", "Contact", nil)
}

func (h *PageHandler) Stats(c echo.Context) error {
	return h.render(c, http.StatusOK, "stats", "Stats", siteStats)
}

func (h *PageHandler) Uploads(c echo.Context) error {
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()
	objs, err := h.Leads.ListUploads(ctx)
	if err != nil {
		logError(c, "list uploads", err)
		p := h.page(c, "Uploads", nil)
		p.Error = "Could not load uploaded files."
		return c.Render(http.StatusOK, "uploads", p)
	}
	return h.render(c, http.StatusOK, "uploads", "Uploads", objs)
}

func (h *PageHandler) NotFound(c echo.Context) error {
	return h.render(c, http.StatusNotFound, "not_found", "Not found", nil)
}

// SubmitAudit handles the landing page audit form.
func (h *PageHandler) SubmitAudit(c echo.Context) error {
	in := service.AuditInput{
		FullName:         c.FormValue("full_name"),
		Email:            c.FormValue("email"),
		AuditType:        c.FormValue("audit_type"),
		ElectricityUsage: c.FormValue("electricity_usage"),
		WaterUsage:       c.FormValue("water_usage"),
		Message:          c.FormValue("message"),
	}
	file, closeFn, err := formFile(c, "file")
	if err != nil {
		return redirectWith(c, "/", "error", "The attached file could not be read.")
	}
	defer closeFn()
	in.File = file

	ctx, cancel := reqCtx(c, uploadTimeout)
	defer cancel()
	if _, err := h.Leads.SubmitAudit(ctx, in); err != nil {
		return redirectWith(c, "/", "error", userMessage(err, "Your request could not be sent. Please try again."))
	}
	return redirectWith(c, "/", "notice", "Thanks! We will contact you about your free audit.")
}

// SubmitInquiry handles the monitoring plan form.
func (h *PageHandler) SubmitInquiry(c echo.Context) error {
	in := service.InquiryInput{
		FullName:       c.FormValue("full_name"),
		CompanyName:    c.FormValue("company_name"),
		Email:          c.FormValue("email"),
		Location:       c.FormValue("location"),
		InquiryType:    c.FormValue("inquiry_type"),
		AdditionalInfo: c.FormValue("additional_info"),
	}
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()
	if _, err := h.Leads.SubmitInquiry(ctx, in); err != nil {
		return redirectWith(c, "/", "error", userMessage(err, "Your inquiry could not be sent. Please try again."))
	}
	return redirectWith(c, "/", "notice", "Thanks! We will send pricing shortly.")
}

// SubmitContact handles the contact page form.
func (h *PageHandler) SubmitContact(c echo.Context) error {
	in := service.ContactInput{
		Name:    c.FormValue("name"),
		Email:   c.FormValue("email"),
		Message: c.FormValue("message"),
	}
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()
	if _, err := h.Leads.SubmitContact(ctx, in); err != nil {
		return redirectWith(c, "/contact", "error", userMessage(err, "Your message could not be sent. Please try again."))
	}
	return redirectWith(c, "/contact", "notice", "Message sent. We will get back to you soon.")
}

func (h *PageHandler) Login(c echo.Context) error {
	return h.render(c, http.StatusOK, "login", "Login", c.QueryParam("email"))
}

// LoginSubmit signs in from the login form and sends the visitor to the
// dashboard for their role.  Accounts without a role are turned away.
func (h *PageHandler) LoginSubmit(c echo.Context) error {
	email := strings.TrimSpace(c.FormValue("email"))
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	sess, err := h.Auth.Auth.SignIn(ctx, email, c.FormValue("password"))
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			logError(c, "sign in", err)
		}
		return redirectWith(c, "/login?email="+url.QueryEscape(email), "error",
			userMessage(err, "Sign in failed. Please try again."))
	}
	switch sess.Role {
	case model.RoleOwner:
		h.Auth.setCookie(c, sess)
		return c.Redirect(http.StatusSeeOther, "/owner-dashboard")
	case model.RoleClient:
		h.Auth.setCookie(c, sess)
		return c.Redirect(http.StatusSeeOther, "/client-dashboard")
	}
	h.Auth.Auth.SignOut(ctx, service.Identity{UserID: sess.User.ID, Email: sess.User.Email, SessionID: sess.SessionID})
	return redirectWith(c, "/login", "error", "This account has no dashboard access.")
}

func (h *PageHandler) Logout(c echo.Context) error {
	h.Auth.signOut(c)
	return c.Redirect(http.StatusSeeOther, "/login")
}

// OwnerDashboard lists the roster, the reports of the selected client (all
// clients when none is selected) and the metrics of the selected report.
func (h *PageHandler) OwnerDashboard(c echo.Context) error {
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()
	v := middleware.Viewer(c)
	view := &ownerView{ClientID: c.QueryParam("client_id")}

	var err error
	if view.Clients, err = h.Reports.ResolveClientRoster(ctx, v); err != nil {
		return h.dashboardError(c, "owner_dashboard", "Owner dashboard", err)
	}
	if view.Reports, err = h.Reports.ListReports(ctx, v, view.ClientID); err != nil {
		return h.dashboardError(c, "owner_dashboard", "Owner dashboard", err)
	}
	view.Selected = pickReport(view.Reports, c.QueryParam("report"), false)
	if view.Selected != nil {
		if view.Metrics, err = h.Reports.ListMetrics(ctx, v, view.Selected.ID); err != nil {
			return h.dashboardError(c, "owner_dashboard", "Owner dashboard", err)
		}
	}
	return h.render(c, http.StatusOK, "owner_dashboard", "Owner dashboard", view)
}

// ClientDashboard shows the caller's own reports.  The most recent report
// is selected unless the query names another.
func (h *PageHandler) ClientDashboard(c echo.Context) error {
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()
	v := middleware.Viewer(c)
	view := &clientView{}

	var err error
	if view.Reports, err = h.Reports.ListReports(ctx, v, ""); err != nil {
		return h.dashboardError(c, "client_dashboard", "Dashboard", err)
	}
	view.Selected = pickReport(view.Reports, c.QueryParam("report"), true)
	if view.Selected != nil {
		if view.Metrics, err = h.Reports.ListMetrics(ctx, v, view.Selected.ID); err != nil {
			return h.dashboardError(c, "client_dashboard", "Dashboard", err)
		}
	}
	return h.render(c, http.StatusOK, "client_dashboard", "Dashboard", view)
}

func (h *PageHandler) dashboardError(c echo.Context, name, title string, err error) error {
	logError(c, name, err)
	p := h.page(c, title, nil)
	p.Error = "Could not load dashboard data."
	return c.Render(http.StatusOK, name, p)
}

// pickReport returns the report with id, or the first (most recent) one
// when id is empty and fallback is set.
func pickReport(reports []*model.Report, id string, fallback bool) *model.Report {
	for _, r := range reports {
		if r.ID == id {
			return r
		}
	}
	if id == "" && fallback && len(reports) > 0 {
		return reports[0]
	}
	return nil
}

// UploadReport handles the owner dashboard upload form.
func (h *PageHandler) UploadReport(c echo.Context) error {
	clientID := strings.TrimSpace(c.FormValue("client_id"))
	back := "/owner-dashboard?client_id=" + url.QueryEscape(clientID)
	in := service.UploadReportInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		ClientID:    clientID,
	}
	file, closeFn, err := formFile(c, "file")
	if err != nil {
		return redirectWith(c, back, "error", "The attached file could not be read.")
	}
	defer closeFn()
	in.File = file

	ctx, cancel := reqCtx(c, uploadTimeout)
	defer cancel()
	rep, err := h.Reports.UploadReport(ctx, middleware.Viewer(c), in)
	if err != nil {
		logError(c, "upload report", err)
		return redirectWith(c, back, "error", userMessage(err, "Upload failed."))
	}
	return redirectWith(c, back+"&report="+url.QueryEscape(rep.ID), "notice", "Report uploaded.")
}

// AddMetric handles the owner dashboard metric form.
func (h *PageHandler) AddMetric(c echo.Context) error {
	reportID := c.Param("id")
	back := "/owner-dashboard?client_id=" + url.QueryEscape(c.FormValue("client_id")) +
		"&report=" + url.QueryEscape(reportID)
	in := service.MetricInput{
		ElectricityUsage:             c.FormValue("electricity_usage"),
		WaterUsage:                   c.FormValue("water_usage"),
		ElectricitySavingsPercentage: c.FormValue("electricity_savings_percentage"),
		WaterSavingsPercentage:       c.FormValue("water_savings_percentage"),
		MeasurementDate:              c.FormValue("measurement_date"),
	}
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()
	if _, err := h.Reports.AddMetric(ctx, middleware.Viewer(c), reportID, in); err != nil {
		logError(c, "add metric", err)
		return redirectWith(c, back, "error", userMessage(err, "Could not add the metric."))
	}
	return redirectWith(c, back, "notice", "Metric added.")
}
