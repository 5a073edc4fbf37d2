package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/utility-audit-portal/internal/model"
)

// LeadRepo stores the public lead-capture submissions.  Rows are written
// once and only ever touched again to record a successful CRM relay.
type LeadRepo struct {
	db *sql.DB
}

func NewLeadRepo(db *sql.DB) *LeadRepo {
	return &LeadRepo{db: db}
}

// lead tables that carry a crm_synced flag
var leadTables = map[string]string{
	model.FormAuditRequest:        "audit_requests",
	model.FormSubscriptionInquiry: "subscription_inquiries",
	model.FormContact:             "contact_messages",
}

func (r *LeadRepo) CreateAudit(ctx context.Context, a *model.AuditRequest) error {
	a.ID, a.CreatedAt = uuid.NewString(), time.Now().UTC().Truncate(time.Second)
	const q = `INSERT INTO audit_requests
	           (id, full_name, email, audit_type, electricity_usage, water_usage, message, file_path, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, a.ID, a.FullName, a.Email, a.AuditType,
		a.ElectricityUsage, a.WaterUsage, a.Message, nullString(a.FilePath), a.CreatedAt)
	return err
}

func (r *LeadRepo) CreateInquiry(ctx context.Context, in *model.SubscriptionInquiry) error {
	in.ID, in.CreatedAt = uuid.NewString(), time.Now().UTC().Truncate(time.Second)
	const q = `INSERT INTO subscription_inquiries
	           (id, full_name, company_name, email, location, inquiry_type, additional_info, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, in.ID, in.FullName, in.CompanyName, in.Email,
		in.Location, in.InquiryType, in.AdditionalInfo, in.CreatedAt)
	return err
}

func (r *LeadRepo) CreateContact(ctx context.Context, m *model.ContactMessage) error {
	m.ID, m.CreatedAt = uuid.NewString(), time.Now().UTC().Truncate(time.Second)
	const q = `INSERT INTO contact_messages (id, name, email, message, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, m.ID, m.Name, m.Email, m.Message, m.CreatedAt)
	return err
}

// MarkRelayed records that the CRM accepted the submission.
func (r *LeadRepo) MarkRelayed(ctx context.Context, formType, id string) error {
	table, ok := leadTables[formType]
	if !ok {
		return fmt.Errorf("unknown form type %q", formType)
	}
	_, err := r.db.ExecContext(ctx, "UPDATE "+table+" SET crm_synced = TRUE WHERE id = ?", id)
	return err
}
