package model

import "time"

// Form types sent to the CRM relay.
const (
	FormAuditRequest        = "audit_request"
	FormSubscriptionInquiry = "subscription_inquiry"
	FormContact             = "contact"
)

// AuditRequest is a free audit lead from the landing page.  The optional
// FilePath points at an uploaded utility bill.
type AuditRequest struct {
	ID               string    `json:"id"`
	FullName         string    `json:"full_name"`
	Email            string    `json:"email"`
	AuditType        string    `json:"audit_type"` // electricity | water | both
	ElectricityUsage string    `json:"electricity_usage,omitempty"`
	WaterUsage       string    `json:"water_usage,omitempty"`
	Message          string    `json:"message,omitempty"`
	FilePath         *string   `json:"file_path,omitempty"`
	CRMSynced        bool      `json:"crm_synced"`
	CreatedAt        time.Time `json:"created_at"`
}

// SubscriptionInquiry is a request for pricing on a monitoring plan.
type SubscriptionInquiry struct {
	ID             string    `json:"id"`
	FullName       string    `json:"full_name"`
	CompanyName    string    `json:"company_name"`
	Email          string    `json:"email"`
	Location       string    `json:"location"`
	InquiryType    string    `json:"inquiry_type"` // electricity | water | both | other
	AdditionalInfo string    `json:"additional_info,omitempty"`
	CRMSynced      bool      `json:"crm_synced"`
	CreatedAt      time.Time `json:"created_at"`
}

// ContactMessage is a message from the contact page.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CRMSynced bool      `json:"crm_synced"`
	CreatedAt time.Time `json:"created_at"`
}
