package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/utility-audit-portal/internal/middleware"
	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/service"
)

// ReportAPI is the part of service.ReportService the handlers use.
type ReportAPI interface {
	ListReports(ctx context.Context, v service.Viewer, clientID string) ([]*model.Report, error)
	UploadReport(ctx context.Context, v service.Viewer, in service.UploadReportInput) (*model.Report, error)
	ListMetrics(ctx context.Context, v service.Viewer, reportID string) ([]model.MetricSample, error)
	AddMetric(ctx context.Context, v service.Viewer, reportID string, in service.MetricInput) (*model.MetricSample, error)
	ResolveClientRoster(ctx context.Context, v service.Viewer) ([]model.RosterEntry, error)
	OpenReportFile(ctx context.Context, v service.Viewer, reportID string) (*service.ReportFile, error)
}

type ReportHandler struct {
	Reports ReportAPI
}

func NewReportHandler(reports ReportAPI) *ReportHandler {
	return &ReportHandler{Reports: reports}
}

// List: GET /api/v1/reports[?client_id=]
func (h *ReportHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	reps, err := h.Reports.ListReports(ctx, middleware.Viewer(c), strings.TrimSpace(c.QueryParam("client_id")))
	if err != nil {
		return fail(c, err, "list reports failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"reports": reps})
}

// Metrics: GET /api/v1/reports/:id/metrics
func (h *ReportHandler) Metrics(c echo.Context) error {
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	ms, err := h.Reports.ListMetrics(ctx, middleware.Viewer(c), c.Param("id"))
	if err != nil {
		return fail(c, err, "list metrics failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"report_id": c.Param("id"), "metrics": ms})
}

// File: GET /api/v1/reports/:id/file streams the stored document as an
// attachment.
func (h *ReportHandler) File(c echo.Context) error {
	ctx, cancel := reqCtx(c, uploadTimeout)
	defer cancel()

	f, err := h.Reports.OpenReportFile(ctx, middleware.Viewer(c), c.Param("id"))
	if err != nil {
		return fail(c, err, "download failed")
	}
	defer f.Body.Close()

	ct := f.ContentType
	if ct == "" {
		ct = "application/pdf"
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", f.Filename))
	return c.Stream(http.StatusOK, ct, f.Body)
}

// Upload: POST /api/v1/owner/reports (multipart: title, description,
// client_id, optional file).
func (h *ReportHandler) Upload(c echo.Context) error {
	in := service.UploadReportInput{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		ClientID:    strings.TrimSpace(c.FormValue("client_id")),
	}
	file, closeFn, err := formFile(c, "file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid file"})
	}
	defer closeFn()
	in.File = file

	ctx, cancel := reqCtx(c, uploadTimeout)
	defer cancel()

	rep, err := h.Reports.UploadReport(ctx, middleware.Viewer(c), in)
	if err != nil {
		return fail(c, err, "upload failed")
	}
	return c.JSON(http.StatusCreated, rep)
}

// AddMetric: POST /api/v1/owner/reports/:id/metrics
func (h *ReportHandler) AddMetric(c echo.Context) error {
	var req metricReq
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	m, err := h.Reports.AddMetric(ctx, middleware.Viewer(c), c.Param("id"), req.input())
	if err != nil {
		return fail(c, err, "add metric failed")
	}
	return c.JSON(http.StatusCreated, m)
}

// Clients: GET /api/v1/owner/clients
func (h *ReportHandler) Clients(c echo.Context) error {
	ctx, cancel := reqCtx(c, defaultTimeout)
	defer cancel()

	roster, err := h.Reports.ResolveClientRoster(ctx, middleware.Viewer(c))
	if err != nil {
		return fail(c, err, "list clients failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"clients": roster})
}

// numeric accepts a JSON string or number and keeps its text for the
// service to parse.
type numeric string

func (n *numeric) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = numeric(s)
		return nil
	}
	if string(b) == "null" {
		*n = ""
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = numeric(num.String())
	return nil
}

type metricReq struct {
	ElectricityUsage             numeric `json:"electricity_usage"`
	WaterUsage                   numeric `json:"water_usage"`
	ElectricitySavingsPercentage numeric `json:"electricity_savings_percentage"`
	WaterSavingsPercentage       numeric `json:"water_savings_percentage"`
	MeasurementDate              string  `json:"measurement_date"`
}

func (r metricReq) input() service.MetricInput {
	return service.MetricInput{
		ElectricityUsage:             string(r.ElectricityUsage),
		WaterUsage:                   string(r.WaterUsage),
		ElectricitySavingsPercentage: string(r.ElectricitySavingsPercentage),
		WaterSavingsPercentage:       string(r.WaterSavingsPercentage),
		MeasurementDate:              r.MeasurementDate,
	}
}

// formFile opens an optional multipart file.  A missing field yields a nil
// FileInput and no error.
func formFile(c echo.Context, field string) (*service.FileInput, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, err
	}
	f, err := fh.Open()
	if err != nil {
		return nil, noop, err
	}
	return fileInput(fh, f), func() { _ = f.Close() }, nil
}

func fileInput(fh *multipart.FileHeader, f multipart.File) *service.FileInput {
	ct := fh.Header.Get(echo.HeaderContentType)
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &service.FileInput{Name: fh.Filename, ContentType: ct, Size: fh.Size, Body: f}
}
