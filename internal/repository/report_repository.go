// Package repository contains data access logic separated from HTTP
// handlers.  This file covers client reports and their metric samples.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/utility-audit-portal/internal/model"
)

const reportColumns = "id, title, description, file_path, uploaded_at, client_id, user_id"

// ReportRepo encapsulates all queries on client_reports.
type ReportRepo struct {
	db *sql.DB
}

func NewReportRepo(db *sql.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Create inserts a report.  ID and UploadedAt are assigned here and written
// back into rep.
func (r *ReportRepo) Create(ctx context.Context, rep *model.Report) error {
	rep.ID = uuid.NewString()
	rep.UploadedAt = time.Now().UTC().Truncate(time.Millisecond)
	const q = `INSERT INTO client_reports (id, title, description, file_path, uploaded_at, client_id, user_id)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		rep.ID, rep.Title, nullString(rep.Description), nullString(rep.FilePath),
		rep.UploadedAt, rep.ClientID, rep.UserID)
	return err
}

// GetByID fetches a single report regardless of client.
func (r *ReportRepo) GetByID(ctx context.Context, id string) (*model.Report, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+reportColumns+" FROM client_reports WHERE id = ?", id)
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rep, err
}

// ListAll returns every report, newest first.  There is no pagination.
func (r *ReportRepo) ListAll(ctx context.Context) ([]*model.Report, error) {
	return r.list(ctx, "SELECT "+reportColumns+" FROM client_reports ORDER BY uploaded_at DESC")
}

// ListByClient returns the reports of one client, newest first.
func (r *ReportRepo) ListByClient(ctx context.Context, clientID string) ([]*model.Report, error) {
	return r.list(ctx,
		"SELECT "+reportColumns+" FROM client_reports WHERE client_id = ? ORDER BY uploaded_at DESC",
		clientID)
}

func (r *ReportRepo) list(ctx context.Context, q string, args ...any) ([]*model.Report, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*model.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(s rowScanner) (*model.Report, error) {
	var (
		rep        model.Report
		desc, path sql.NullString
	)
	if err := s.Scan(&rep.ID, &rep.Title, &desc, &path, &rep.UploadedAt, &rep.ClientID, &rep.UserID); err != nil {
		return nil, err
	}
	rep.Description = stringPtr(desc)
	rep.FilePath = stringPtr(path)
	return &rep, nil
}

// MetricRepo encapsulates all queries on client_metrics.
type MetricRepo struct {
	db *sql.DB
}

func NewMetricRepo(db *sql.DB) *MetricRepo {
	return &MetricRepo{db: db}
}

// Create appends a metric sample; ID is assigned here.
func (r *MetricRepo) Create(ctx context.Context, m *model.MetricSample) error {
	m.ID = uuid.NewString()
	const q = `INSERT INTO client_metrics
	           (id, report_id, electricity_usage, water_usage,
	            electricity_savings_percentage, water_savings_percentage, measurement_date)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		m.ID, m.ReportID, m.ElectricityUsage, m.WaterUsage,
		m.ElectricitySavingsPercentage, m.WaterSavingsPercentage,
		m.MeasurementDate.Format(time.DateOnly))
	return err
}

// ListByReport returns the samples of a report in chronological order.
func (r *MetricRepo) ListByReport(ctx context.Context, reportID string) ([]model.MetricSample, error) {
	const q = `SELECT id, report_id, electricity_usage, water_usage,
	                  electricity_savings_percentage, water_savings_percentage, measurement_date
	           FROM client_metrics WHERE report_id = ?
	           ORDER BY measurement_date ASC, created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.MetricSample{}
	for rows.Next() {
		var m model.MetricSample
		if err := rows.Scan(&m.ID, &m.ReportID, &m.ElectricityUsage, &m.WaterUsage,
			&m.ElectricitySavingsPercentage, &m.WaterSavingsPercentage, &m.MeasurementDate); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
