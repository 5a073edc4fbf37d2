package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/utility-audit-portal/internal/model"
	"github.com/iliyamo/utility-audit-portal/internal/objectstore/objectstoretest"
	"github.com/iliyamo/utility-audit-portal/internal/queue"
)

const billsBucket = "utility-bills"

type leadFixture struct {
	svc    *LeadService
	leads  *memLeads
	crm    *fakeCRM
	bucket *objectstoretest.Memory
	events *recordingPublisher
}

func newLeadFixture() *leadFixture {
	f := &leadFixture{
		leads:  newMemLeads(),
		crm:    &fakeCRM{},
		bucket: objectstoretest.NewMemory(),
		events: &recordingPublisher{},
	}
	f.svc = NewLeadService(f.leads, f.crm, f.bucket, billsBucket, f.events, discardLogger())
	return f
}

func TestSubmitContact_RelaysOnceWithFields(t *testing.T) {
	triples := []ContactInput{
		{Name: "Ada Lovelace", Email: "ada@example.com", Message: "Please call me"},
		{Name: "José", Email: "jose@example.es", Message: "¿Hola?"},
		{Name: "x", Email: "x@y.z", Message: "m"},
	}
	for _, in := range triples {
		f := newLeadFixture()
		msg, err := f.svc.SubmitContact(context.Background(), in)
		require.NoError(t, err)

		require.Len(t, f.crm.calls, 1, "relay must be invoked exactly once")
		call := f.crm.calls[0]
		assert.Equal(t, model.FormContact, call.formType)
		assert.Equal(t, map[string]any{"name": in.Name, "email": in.Email, "message": in.Message}, call.data)

		assert.True(t, msg.CRMSynced)
		assert.Equal(t, model.FormContact, f.leads.relayed[msg.ID])
		assert.Equal(t, []string{queue.EventLeadSubmitted}, f.events.types())
	}
}

func TestSubmitContact_RelayFailureKeepsRow(t *testing.T) {
	f := newLeadFixture()
	f.crm.err = errBoom

	msg, err := f.svc.SubmitContact(context.Background(), ContactInput{Name: "n", Email: "n@example.com", Message: "m"})
	require.NoError(t, err, "relay failure is not surfaced")
	assert.False(t, msg.CRMSynced)
	assert.Len(t, f.leads.contacts, 1)
	assert.Empty(t, f.leads.relayed)
	assert.Len(t, f.crm.calls, 1, "no retry")
}

func TestSubmitContact_Validation(t *testing.T) {
	f := newLeadFixture()
	var verr *ValidationError

	_, err := f.svc.SubmitContact(context.Background(), ContactInput{Email: "a@b.c", Message: "m"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name", verr.Field)

	_, err = f.svc.SubmitContact(context.Background(), ContactInput{Name: "n", Email: "nope", Message: "m"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)

	assert.Empty(t, f.crm.calls)
	assert.Empty(t, f.leads.contacts)
}

func TestSubmitAudit_WithBill(t *testing.T) {
	f := newLeadFixture()
	body := []byte("bill-image")

	a, err := f.svc.SubmitAudit(context.Background(), AuditInput{
		FullName: "Grace", Email: "grace@example.com", AuditType: "both",
		ElectricityUsage: "450 kWh", Message: "hello",
		File: &FileInput{Name: "bill.JPG", ContentType: "image/jpeg", Size: int64(len(body)), Body: bytes.NewReader(body)},
	})
	require.NoError(t, err)
	require.NotNil(t, a.FilePath)
	assert.True(t, f.bucket.Has(billsBucket, *a.FilePath))

	require.Len(t, f.crm.calls, 1)
	data := f.crm.calls[0].data
	assert.Equal(t, model.FormAuditRequest, f.crm.calls[0].formType)
	assert.Equal(t, "both", data["audit_type"])
	assert.Equal(t, f.bucket.PublicURL(billsBucket, *a.FilePath), data["file_url"])
}

func TestSubmitAudit_InsertFailureRemovesBill(t *testing.T) {
	f := newLeadFixture()
	f.leads.createErr = errBoom

	_, err := f.svc.SubmitAudit(context.Background(), AuditInput{
		FullName: "Grace", Email: "grace@example.com", AuditType: "water",
		File: &FileInput{Name: "b.pdf", Size: 1, Body: bytes.NewReader([]byte("x"))},
	})
	require.ErrorIs(t, err, errBoom)
	assert.Zero(t, f.bucket.Count(billsBucket))
	assert.Empty(t, f.crm.calls)
}

func TestSubmitAudit_RejectsUnknownType(t *testing.T) {
	f := newLeadFixture()
	_, err := f.svc.SubmitAudit(context.Background(), AuditInput{FullName: "g", Email: "g@x.io", AuditType: "gas"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "audit_type", verr.Field)
}

func TestSubmitInquiry(t *testing.T) {
	f := newLeadFixture()
	q, err := f.svc.SubmitInquiry(context.Background(), InquiryInput{
		FullName: "Lin", CompanyName: "Acme", Email: "lin@acme.io", Location: "Leeds", InquiryType: "other",
	})
	require.NoError(t, err)
	assert.True(t, q.CRMSynced)
	require.Len(t, f.crm.calls, 1)
	assert.Equal(t, model.FormSubscriptionInquiry, f.crm.calls[0].formType)
	assert.Equal(t, "Acme", f.crm.calls[0].data["company_name"])

	_, err = f.svc.SubmitInquiry(context.Background(), InquiryInput{
		FullName: "Lin", CompanyName: "Acme", Email: "lin@acme.io", Location: "Leeds", InquiryType: "gas",
	})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestListUploads(t *testing.T) {
	f := newLeadFixture()
	_, err := f.bucket.UploadFile(context.Background(), billsBucket, "1-a.pdf", bytes.NewReader([]byte("a")), 1, "")
	require.NoError(t, err)

	objs, err := f.svc.ListUploads(context.Background())
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "http://storage.test/utility-bills/1-a.pdf", objs[0].PublicURL)
}
