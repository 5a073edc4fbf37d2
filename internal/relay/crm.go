package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iliyamo/utility-audit-portal/internal/config"
)

// CRMRelay appends one row per submission to an Airtable-style table.
type CRMRelay struct {
	apiKey   string
	endpoint string
	http     *http.Client
	now      func() time.Time
}

func NewCRMRelay(cfg config.CRMConfig) *CRMRelay {
	r := &CRMRelay{
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: defaultRelayTimeout},
		now:    time.Now,
	}
	if cfg.BaseID != "" {
		r.endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/v0/" +
			url.PathEscape(cfg.BaseID) + "/" + url.PathEscape(cfg.Table)
	}
	return r
}

type crmRow struct {
	Fields map[string]any `json:"fields"`
}

// Submit forwards formData as a new row tagged with formType and the
// submission time.  A file_url entry is mirrored into FileURL.  The decoded
// API response is returned on success.
func (r *CRMRelay) Submit(ctx context.Context, formType string, formData map[string]any) (map[string]any, error) {
	if r.apiKey == "" || r.endpoint == "" {
		return nil, ErrNotConfigured
	}
	fields := make(map[string]any, len(formData)+3)
	fields["FormType"] = formType
	for k, v := range formData {
		fields[k] = v
	}
	fields["SubmittedAt"] = r.now().UTC().Format(time.RFC3339)
	if u, ok := formData["file_url"]; ok && u != nil && u != "" {
		fields["FileURL"] = u
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(crmRow{Fields: fields}); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("crm status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return nil, fmt.Errorf("crm response: %w", err)
	}
	return out, nil
}
