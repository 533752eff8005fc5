package gstin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// RegistryRecord is the enrichment returned by the public GST registry.
// It only ever supplements a successful Decode; nothing in the core
// requires it.
type RegistryRecord struct {
	LegalName string `json:"legal_name"`
	TradeName string `json:"trade_name"`
	Address   string `json:"address"`
	Status    string `json:"status"`
}

// ErrRegistryUnavailable indicates the remote lookup failed; callers
// should treat the record as absent, never as a validation failure.
var ErrRegistryUnavailable = errors.New("gstin: registry unavailable")

// RegistryClient wraps the remote GSTIN registry lookup.
type RegistryClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRegistryClient constructs a client. An empty baseURL disables
// lookups; Lookup then always reports ErrRegistryUnavailable.
func NewRegistryClient(baseURL string, timeout time.Duration) *RegistryClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RegistryClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Lookup fetches the registered details for an already-decoded GSTIN.
func (c *RegistryClient) Lookup(ctx context.Context, id string) (*RegistryRecord, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrRegistryUnavailable
	}
	decoded, err := Decode(id)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/taxpayers/%s", c.baseURL, url.PathEscape(decoded.GSTIN))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d", ErrRegistryUnavailable, resp.StatusCode)
	}

	var record RegistryRecord
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrRegistryUnavailable, err)
	}
	return &record, nil
}
