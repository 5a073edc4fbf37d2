package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/objectstore"
	"github.com/iliyamo/utility-audit-portal/internal/queue"
)

type leadStore interface {
	CreateAudit(ctx context.Context, a *model.AuditRequest) error
	CreateInquiry(ctx context.Context, in *model.SubscriptionInquiry) error
	CreateContact(ctx context.Context, m *model.ContactMessage) error
	MarkRelayed(ctx context.Context, formType, id string) error
}

// CRM is the lead relay.  It is called at most once per submission.
type CRM interface {
	Submit(ctx context.Context, formType string, formData map[string]any) (map[string]any, error)
}

type AuditInput struct {
	FullName         string
	Email            string
	AuditType        string
	ElectricityUsage string
	WaterUsage       string
	Message          string
	File             *FileInput
}

type InquiryInput struct {
	FullName       string `json:"full_name"`
	CompanyName    string `json:"company_name"`
	Email          string `json:"email"`
	Location       string `json:"location"`
	InquiryType    string `json:"inquiry_type"`
	AdditionalInfo string `json:"additional_info"`
}

type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// LeadService records public lead submissions.  The database row is
// written first; the CRM relay follows and its failure only leaves the row
// unsynced.
type LeadService struct {
	leads  leadStore
	crm    CRM
	bucket objectstore.Bucket
	bills  string // utility bills bucket
	events Publisher
	log    *slog.Logger
	now    func() time.Time
}

func NewLeadService(leads leadStore, crm CRM, bucket objectstore.Bucket, billsBucket string,
	events Publisher, log *slog.Logger) *LeadService {
	return &LeadService{
		leads:  leads,
		crm:    crm,
		bucket: bucket,
		bills:  billsBucket,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// SubmitAudit stores a free-audit request with an optional utility bill.
func (s *LeadService) SubmitAudit(ctx context.Context, in AuditInput) (*model.AuditRequest, error) {
	if err := required("full_name", in.FullName); err != nil {
		return nil, err
	}
	if err := validEmail("email", in.Email); err != nil {
		return nil, err
	}
	if err := oneOf("audit_type", in.AuditType, "electricity", "water", "both"); err != nil {
		return nil, err
	}

	a := &model.AuditRequest{
		FullName:         strings.TrimSpace(in.FullName),
		Email:            strings.TrimSpace(in.Email),
		AuditType:        in.AuditType,
		ElectricityUsage: strings.TrimSpace(in.ElectricityUsage),
		WaterUsage:       strings.TrimSpace(in.WaterUsage),
		Message:          strings.TrimSpace(in.Message),
	}

	var key string
	if in.File != nil {
		key = objectstore.NewObjectKey(in.File.Name, s.now())
		if _, err := s.bucket.UploadFile(ctx, s.bills, key, in.File.Body, in.File.Size, in.File.ContentType); err != nil {
			return nil, err
		}
		a.FilePath = &key
	}
	if err := s.leads.CreateAudit(ctx, a); err != nil {
		if key != "" {
			if derr := s.bucket.Delete(ctx, s.bills, key); derr != nil {
				s.log.Error("orphaned bill object", "bucket", s.bills, "key", key, "err", derr)
			}
		}
		return nil, err
	}

	data := map[string]any{
		"full_name":         a.FullName,
		"email":             a.Email,
		"audit_type":        a.AuditType,
		"electricity_usage": a.ElectricityUsage,
		"water_usage":       a.WaterUsage,
		"message":           a.Message,
	}
	if key != "" {
		data["file_url"] = s.bucket.PublicURL(s.bills, key)
	}
	a.CRMSynced = s.relay(ctx, model.FormAuditRequest, a.ID, data)
	return a, nil
}

// SubmitInquiry stores a subscription inquiry.
func (s *LeadService) SubmitInquiry(ctx context.Context, in InquiryInput) (*model.SubscriptionInquiry, error) {
	for _, f := range []struct{ name, v string }{
		{"full_name", in.FullName},
		{"company_name", in.CompanyName},
		{"location", in.Location},
	} {
		if err := required(f.name, f.v); err != nil {
			return nil, err
		}
	}
	if err := validEmail("email", in.Email); err != nil {
		return nil, err
	}
	if err := oneOf("inquiry_type", in.InquiryType, "electricity", "water", "both", "other"); err != nil {
		return nil, err
	}

	q := &model.SubscriptionInquiry{
		FullName:       strings.TrimSpace(in.FullName),
		CompanyName:    strings.TrimSpace(in.CompanyName),
		Email:          strings.TrimSpace(in.Email),
		Location:       strings.TrimSpace(in.Location),
		InquiryType:    in.InquiryType,
		AdditionalInfo: strings.TrimSpace(in.AdditionalInfo),
	}
	if err := s.leads.CreateInquiry(ctx, q); err != nil {
		return nil, err
	}
	q.CRMSynced = s.relay(ctx, model.FormSubscriptionInquiry, q.ID, map[string]any{
		"full_name":       q.FullName,
		"company_name":    q.CompanyName,
		"email":           q.Email,
		"location":        q.Location,
		"inquiry_type":    q.InquiryType,
		"additional_info": q.AdditionalInfo,
	})
	return q, nil
}

// SubmitContact stores a contact-page message.
func (s *LeadService) SubmitContact(ctx context.Context, in ContactInput) (*model.ContactMessage, error) {
	if err := required("name", in.Name); err != nil {
		return nil, err
	}
	if err := validEmail("email", in.Email); err != nil {
		return nil, err
	}
	if err := required("message", in.Message); err != nil {
		return nil, err
	}

	m := &model.ContactMessage{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Message: strings.TrimSpace(in.Message),
	}
	if err := s.leads.CreateContact(ctx, m); err != nil {
		return nil, err
	}
	m.CRMSynced = s.relay(ctx, model.FormContact, m.ID, map[string]any{
		"name":    m.Name,
		"email":   m.Email,
		"message": m.Message,
	})
	return m, nil
}

// ListUploads lists the utility bills bucket with public URLs.
func (s *LeadService) ListUploads(ctx context.Context) ([]model.StoredObject, error) {
	return s.bucket.List(ctx, s.bills)
}

// relay forwards a stored lead once and reports whether the CRM accepted it.
func (s *LeadService) relay(ctx context.Context, formType, id string, data map[string]any) bool {
	ev := queue.NewEvent(queue.EventLeadSubmitted, "", id)
	ev.Detail = map[string]string{"form_type": formType}
	defer func() { s.events.Publish(ctx, ev) }()

	if _, err := s.crm.Submit(ctx, formType, data); err != nil {
		s.log.Warn("crm relay failed; lead kept unsynced", "form_type", formType, "id", id, "err", err)
		ev.Detail["crm"] = "failed"
		return false
	}
	ev.Detail["crm"] = "synced"
	if err := s.leads.MarkRelayed(ctx, formType, id); err != nil {
		s.log.Warn("mark lead relayed", "form_type", formType, "id", id, "err", err)
	}
	return true
}
