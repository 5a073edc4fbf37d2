package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/service"
)

// LeadAPI is the part of service.LeadService the handlers use.
type LeadAPI interface {
	SubmitAudit(ctx context.Context, in service.AuditInput) (*model.AuditRequest, error)
	SubmitInquiry(ctx context.Context, in service.InquiryInput) (*model.SubscriptionInquiry, error)
	SubmitContact(ctx context.Context, in service.ContactInput) (*model.ContactMessage, error)
	ListUploads(ctx context.Context) ([]model.StoredObject, error)
}

// LeadHandler serves the public lead capture forms.
type LeadHandler struct {
	Leads LeadAPI
}

func NewLeadHandler(leads LeadAPI) *LeadHandler {
	return &LeadHandler{Leads: leads}
}

// Audit: POST /api/v1/audit-requests (multipart, optional "file" bill).
func (h *LeadHandler) Audit(c echo.Context) error {
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
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file"})
	}
	defer closeFn()
	in.File = file

	ctx, cancel := reqCtx(c, uploadTimeout)
	defer cancel()

	a, err := h.Leads.SubmitAudit(ctx, in)
	if err != nil {
		return fail(c, err, "audit request failed")
	}
	return c.JSON(http.StatusCreated, a)
}

// Inquiry: POST /api/v1/inquiries
func (h *LeadHandler) Inquiry(c echo.Context) error {
	var in service.InquiryInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	q, err := h.Leads.SubmitInquiry(ctx, in)
	if err != nil {
		return fail(c, err, "inquiry failed")
	}
	return c.JSON(http.StatusCreated, q)
}

// Contact: POST /api/v1/contact
func (h *LeadHandler) Contact(c echo.Context) error {
	var in service.ContactInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	m, err := h.Leads.SubmitContact(ctx, in)
	if err != nil {
		return fail(c, err, "contact failed")
	}
	return c.JSON(http.StatusCreated, m)
}

// Uploads: GET /api/v1/uploads
func (h *LeadHandler) Uploads(c echo.Context) error {
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	objs, err := h.Leads.ListUploads(ctx)
	if err != nil {
		return fail(c, err, "list uploads failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"files": objs})
}
