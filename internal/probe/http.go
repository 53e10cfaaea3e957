// Package probe implements the best-effort existence check against a
// remote catalog service.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/trendtube/ingest/internal/video"
)

// HTTP asks a catalog service whether a record exists for an identifier.
// It is a single-shot check with no retries; callers treat any error as
// "not found".
type HTTP struct {
	baseURL string
	client  *http.Client
}

// NewHTTP constructs an HTTP prober for the catalog at baseURL.
func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Exists issues GET {base}/videos/{id}/exists and decodes the bare
// boolean body.
func (p *HTTP) Exists(ctx context.Context, id video.ID) (bool, error) {
	endpoint := fmt.Sprintf("%s/videos/%s/exists", p.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("probe catalog: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("probe catalog: unexpected status %d", resp.StatusCode)
	}

	var exists bool
	if err := json.NewDecoder(resp.Body).Decode(&exists); err != nil {
		return false, fmt.Errorf("decode probe response: %w", err)
	}
	return exists, nil
}
