package model

import "time"

// Report is one uploaded document for a client.  Reports are never updated;
// FilePath references the object in the reports bucket and is nil when the
// report was created without a file.
type Report struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	FilePath    *string   `json:"file_path"`
	UploadedAt  time.Time `json:"uploaded_at"`
	ClientID    string    `json:"client_id"`
	UserID      string    `json:"user_id"`
}

// MetricSample is one dated usage/savings measurement tied to a report.
// Samples are append-only and read back ordered by MeasurementDate.
type MetricSample struct {
	ID                           string    `json:"id"`
	ReportID                     string    `json:"report_id"`
	ElectricityUsage             float64   `json:"electricity_usage"`
	WaterUsage                   float64   `json:"water_usage"`
	ElectricitySavingsPercentage float64   `json:"electricity_savings_percentage"`
	WaterSavingsPercentage       float64   `json:"water_savings_percentage"`
	MeasurementDate              time.Time `json:"measurement_date"`
}

// StoredObject describes a file in a public bucket, as listed on /uploads.
type StoredObject struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
	PublicURL    string    `json:"public_url"`
}
