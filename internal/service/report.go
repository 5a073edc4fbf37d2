package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/objectstore"
	"github.com/iliyamo/utility-audit-portal/internal/queue"
	"github.com/iliyamo/utility-audit-portal/internal/repository"
)

type reportStore interface {
	Create(ctx context.Context, rep *model.Report) error
	GetByID(ctx context.Context, id string) (*model.Report, error)
	ListAll(ctx context.Context) ([]*model.Report, error)
	ListByClient(ctx context.Context, clientID string) ([]*model.Report, error)
}

type metricStore interface {
	Create(ctx context.Context, m *model.MetricSample) error
	ListByReport(ctx context.Context, reportID string) ([]model.MetricSample, error)
}

type rosterStore interface {
	ListClients(ctx context.Context) ([]model.RosterEntry, error)
}

// roleLookup resolves the role of a report's target user.
type roleLookup interface {
	Resolve(ctx context.Context, userID string) (model.Role, error)
}

// FileInput is an uploaded file as received from a multipart form.
type FileInput struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadSeeker
}

type UploadReportInput struct {
	Title       string
	Description string
	ClientID    string
	File        *FileInput
}

// MetricInput holds the raw form strings of one metric sample.
// MeasurementDate is optional (YYYY-MM-DD); empty means today.
type MetricInput struct {
	ElectricityUsage             string `json:"electricity_usage"`
	WaterUsage                   string `json:"water_usage"`
	ElectricitySavingsPercentage string `json:"electricity_savings_percentage"`
	WaterSavingsPercentage       string `json:"water_savings_percentage"`
	MeasurementDate              string `json:"measurement_date,omitempty"`
}

type ReportService struct {
	reports reportStore
	metrics metricStore
	roster  rosterStore
	roles   roleLookup
	bucket  objectstore.Bucket
	name    string // reports bucket
	events  Publisher
	log     *slog.Logger
	now     func() time.Time
}

func NewReportService(reports reportStore, metrics metricStore, roster rosterStore, roles roleLookup,
	bucket objectstore.Bucket, bucketName string, events Publisher, log *slog.Logger) *ReportService {
	return &ReportService{
		reports: reports,
		metrics: metrics,
		roster:  roster,
		roles:   roles,
		bucket:  bucket,
		name:    bucketName,
		events:  events,
		log:     log,
		now:     time.Now,
	}
}

// ListReports returns reports newest first.  Owners see everything, or one
// client's reports when clientID is set.  Clients always get their own
// reports only, whatever clientID says.
func (s *ReportService) ListReports(ctx context.Context, v Viewer, clientID string) ([]*model.Report, error) {
	switch {
	case v.IsOwner() && clientID == "":
		return s.reports.ListAll(ctx)
	case v.IsOwner():
		return s.reports.ListByClient(ctx, clientID)
	case v.IsClient():
		return s.reports.ListByClient(ctx, v.ID)
	default:
		return nil, repository.ErrForbidden
	}
}

// UploadReport stores the optional file under a fresh key, then inserts the
// report row.  If the insert fails the stored object is removed again; a
// failed removal is logged as an orphan.
func (s *ReportService) UploadReport(ctx context.Context, v Viewer, in UploadReportInput) (*model.Report, error) {
	if !v.IsOwner() {
		return nil, repository.ErrForbidden
	}
	if err := required("title", in.Title); err != nil {
		return nil, err
	}
	if err := required("client_id", in.ClientID); err != nil {
		return nil, err
	}
	// a report belongs to exactly one client user; checked before any bytes
	// are stored
	role, err := s.roles.Resolve(ctx, in.ClientID)
	if err != nil {
		return nil, err
	}
	if role != model.RoleClient {
		return nil, invalid("client_id", "is not a client")
	}

	rep := &model.Report{
		Title:    strings.TrimSpace(in.Title),
		ClientID: in.ClientID,
		UserID:   v.ID,
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		rep.Description = &d
	}

	var key string
	if in.File != nil {
		key = objectstore.NewObjectKey(in.File.Name, s.now())
		if _, err := s.bucket.UploadFile(ctx, s.name, key, in.File.Body, in.File.Size, in.File.ContentType); err != nil {
			return nil, err
		}
		rep.FilePath = &key
	}

	if err := s.reports.Create(ctx, rep); err != nil {
		if key != "" {
			if derr := s.bucket.Delete(ctx, s.name, key); derr != nil {
				s.log.Error("orphaned report object", "bucket", s.name, "key", key, "err", derr)
			}
		}
		return nil, err
	}

	ev := queue.NewEvent(queue.EventReportUploaded, v.ID, rep.ID)
	ev.ClientID = rep.ClientID
	ev.Detail = map[string]string{"title": rep.Title}
	s.events.Publish(ctx, ev)
	return rep, nil
}

// ListMetrics returns a report's samples in chronological order.
func (s *ReportService) ListMetrics(ctx context.Context, v Viewer, reportID string) ([]model.MetricSample, error) {
	if _, err := s.visibleReport(ctx, v, reportID); err != nil {
		return nil, err
	}
	return s.metrics.ListByReport(ctx, reportID)
}

// AddMetric parses the four numeric fields and appends a sample.  Any
// number is accepted, negative values included.
func (s *ReportService) AddMetric(ctx context.Context, v Viewer, reportID string, in MetricInput) (*model.MetricSample, error) {
	if !v.IsOwner() {
		return nil, repository.ErrForbidden
	}
	m := &model.MetricSample{ReportID: reportID}
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"electricity_usage", in.ElectricityUsage, &m.ElectricityUsage},
		{"water_usage", in.WaterUsage, &m.WaterUsage},
		{"electricity_savings_percentage", in.ElectricitySavingsPercentage, &m.ElectricitySavingsPercentage},
		{"water_savings_percentage", in.WaterSavingsPercentage, &m.WaterSavingsPercentage},
	}
	for _, f := range fields {
		val, err := parseNumber(f.name, f.raw)
		if err != nil {
			return nil, err
		}
		*f.dst = val
	}

	m.MeasurementDate = today(s.now())
	if in.MeasurementDate != "" {
		d, err := time.Parse(time.DateOnly, in.MeasurementDate)
		if err != nil {
			return nil, invalid("measurement_date", "must be YYYY-MM-DD")
		}
		m.MeasurementDate = d
	}

	if _, err := s.reports.GetByID(ctx, reportID); err != nil {
		return nil, err
	}
	if err := s.metrics.Create(ctx, m); err != nil {
		return nil, err
	}

	ev := queue.NewEvent(queue.EventMetricAdded, v.ID, reportID)
	ev.Detail = map[string]string{"measurement_date": m.MeasurementDate.Format(time.DateOnly)}
	s.events.Publish(ctx, ev)
	return m, nil
}

// ResolveClientRoster lists selectable clients with one query.
func (s *ReportService) ResolveClientRoster(ctx context.Context, v Viewer) ([]model.RosterEntry, error) {
	if !v.IsOwner() {
		return nil, repository.ErrForbidden
	}
	return s.roster.ListClients(ctx)
}

// ReportFile is an opened report document.
type ReportFile struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	Size        int64
}

// OpenReportFile opens a report's stored document for download.  A report
// without a file, or whose object has gone, is ErrNotFound.
func (s *ReportService) OpenReportFile(ctx context.Context, v Viewer, reportID string) (*ReportFile, error) {
	rep, err := s.visibleReport(ctx, v, reportID)
	if err != nil {
		return nil, err
	}
	if rep.FilePath == nil || *rep.FilePath == "" {
		return nil, repository.ErrNotFound
	}
	body, info, err := s.bucket.DownloadFile(ctx, s.name, *rep.FilePath)
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ReportFile{
		Body:        body,
		Filename:    DownloadName(rep.Title, *rep.FilePath),
		ContentType: info.ContentType,
		Size:        info.Size,
	}, nil
}

// visibleReport loads a report and applies the client scope.
func (s *ReportService) visibleReport(ctx context.Context, v Viewer, reportID string) (*model.Report, error) {
	if !v.IsOwner() && !v.IsClient() {
		return nil, repository.ErrForbidden
	}
	rep, err := s.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}
	if v.IsClient() && rep.ClientID != v.ID {
		return nil, repository.ErrForbidden
	}
	return rep, nil
}

// DownloadName turns a report title into a save-as filename: whitespace runs
// become underscores and the stored object's extension (default .pdf) is
// appended.
func DownloadName(title, key string) string {
	name := strings.Join(strings.Fields(title), "_")
	if name == "" {
		name = "report"
	}
	ext := filepath.Ext(key)
	if ext == "" {
		ext = ".pdf"
	}
	return name + ext
}

func parseNumber(field, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalid(field, "is required")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalid(field, "must be a number")
	}
	return f, nil
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
