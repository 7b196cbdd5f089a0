// Package clinic provides the typed HTTP client for the clinic server
// endpoints the consultation editor collaborates with. The server owns
// persistence, validation, and write serialization; this client only
// speaks the wire contracts.
package clinic

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/clinicdesk/consult/internal/domain/prescription"
	"github.com/clinicdesk/consult/pkg/circuitbreaker"
)

var (
	// ErrAlreadyFinalized reports the benign 403 from a save attempt on a
	// finalized prescription
	ErrAlreadyFinalized = errors.New("prescription already finalized")
	// ErrNoAutosaveEndpoint reports a send with no autosave URL configured
	ErrNoAutosaveEndpoint = errors.New("autosave endpoint not configured")
)

// Config holds the collaborator endpoints. BaseURL serves the fixed
// routes; AutosaveURL and FinalizeURL are page-supplied and may be empty,
// in which case autosave is disabled and finalize falls back to the
// conventional route under BaseURL.
type Config struct {
	BaseURL     string
	AutosaveURL string
	FinalizeURL string
}

// Client is the clinic endpoint client
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger

	templateBreaker *circuitbreaker.Breaker
	symptomBreaker  *circuitbreaker.Breaker
}

// New creates a clinic client. Template and symptom lookups run through
// circuit breakers; autosave and finalize deliberately do not, since their
// failure handling is specified per call site.
func New(cfg Config, httpClient *http.Client, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("clinic base URL is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	templateBreaker, err := circuitbreaker.New(circuitbreaker.DefaultConfig("templates"), logger)
	if err != nil {
		return nil, fmt.Errorf("create template breaker: %w", err)
	}
	symptomBreaker, err := circuitbreaker.New(circuitbreaker.DefaultConfig("symptom-templates"), logger)
	if err != nil {
		return nil, fmt.Errorf("create symptom breaker: %w", err)
	}

	return &Client{
		config:          cfg,
		httpClient:      httpClient,
		logger:          logger,
		templateBreaker: templateBreaker,
		symptomBreaker:  symptomBreaker,
	}, nil
}

// AutosaveConfigured reports whether partial saves have somewhere to go
func (c *Client) AutosaveConfigured() bool {
	return c.config.AutosaveURL != ""
}

// Autosave POSTs a sparse partial update. The response body is ignored;
// any non-2xx status is an error the caller is expected to swallow.
func (c *Client) Autosave(ctx context.Context, payload map[string]string) error {
	if !c.AutosaveConfigured() {
		return ErrNoAutosaveEndpoint
	}

	status, err := c.postJSON(ctx, c.config.AutosaveURL, payload)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("autosave: unexpected status %d", status)
	}
	return nil
}

// SavePrescription persists the structured items as the record of truth.
// A 403 means the prescription was already finalized server-side and is
// reported as ErrAlreadyFinalized for the caller to treat as benign.
func (c *Client) SavePrescription(ctx context.Context, appointmentID string, items []prescription.Item) error {
	endpoint := fmt.Sprintf("%s/save_prescription/%s", c.config.BaseURL, url.PathEscape(appointmentID))

	status, err := c.postJSON(ctx, endpoint, map[string]interface{}{"items": items})
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusForbidden:
		return ErrAlreadyFinalized
	case status < 200 || status >= 300:
		return fmt.Errorf("save prescription: unexpected status %d", status)
	}
	return nil
}

// Finalize submits the form-encoded finalize request that locks the
// consultation server-side
func (c *Client) Finalize(ctx context.Context, appointmentID string, form url.Values) error {
	endpoint := c.config.FinalizeURL
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/finalize/%s", c.config.BaseURL, url.PathEscape(appointmentID))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("finalize: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("finalize: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// DocumentURL returns the print/download view for a finalized prescription
func (c *Client) DocumentURL(appointmentID string) string {
	return fmt.Sprintf("%s/prescription/%s", c.config.BaseURL, url.PathEscape(appointmentID))
}

// SearchTemplates queries the prescription template index. When the
// circuit is open the picker degrades to an empty result list.
func (c *Client) SearchTemplates(ctx context.Context, query string) ([]prescription.TemplateRef, error) {
	endpoint := c.config.BaseURL + "/templates/search"
	if query != "" {
		endpoint += "?q=" + url.QueryEscape(query)
	}

	result, err := c.templateBreaker.ExecuteWithFallback(ctx,
		func() (interface{}, error) {
			var refs []prescription.TemplateRef
			if err := c.getJSON(ctx, endpoint, &refs); err != nil {
				return nil, err
			}
			return refs, nil
		},
		func(error) (interface{}, error) {
			return []prescription.TemplateRef{}, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return result.([]prescription.TemplateRef), nil
}

// FetchTemplate retrieves a template's items by id
func (c *Client) FetchTemplate(ctx context.Context, id string) (*prescription.Template, error) {
	endpoint := c.config.BaseURL + "/templates/" + url.PathEscape(id)

	result, err := c.templateBreaker.Execute(ctx, func() (interface{}, error) {
		var tpl prescription.Template
		if err := c.getJSON(ctx, endpoint, &tpl); err != nil {
			return nil, err
		}
		return &tpl, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*prescription.Template), nil
}

// SaveTemplate persists the current prescription as a reusable template
func (c *Client) SaveTemplate(ctx context.Context, req *prescription.SaveTemplateRequest) error {
	status, err := c.postJSON(ctx, c.config.BaseURL+"/templates/save", req)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("save template: unexpected status %d", status)
	}
	return nil
}

// SearchSymptomTemplates queries the symptom template index, degrading to
// an empty list when the circuit is open
func (c *Client) SearchSymptomTemplates(ctx context.Context, query string) ([]prescription.SymptomTemplate, error) {
	endpoint := c.config.BaseURL + "/symptom-templates/search?q=" + url.QueryEscape(query)

	result, err := c.symptomBreaker.ExecuteWithFallback(ctx,
		func() (interface{}, error) {
			var tpls []prescription.SymptomTemplate
			if err := c.getJSON(ctx, endpoint, &tpls); err != nil {
				return nil, err
			}
			return tpls, nil
		},
		func(error) (interface{}, error) {
			return []prescription.SymptomTemplate{}, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return result.([]prescription.SymptomTemplate), nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, body interface{}) (int, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Error("decode response failed",
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
