package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPPolicyClient calls a remote dispatch policy service over HTTP.
type HTTPPolicyClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPPolicyClient creates a policy client with connection pooling.
func NewHTTPPolicyClient(baseURL string) *HTTPPolicyClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	return &HTTPPolicyClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: transport,
		},
	}
}

// Endpoint returns the policy service base URL.
func (c *HTTPPolicyClient) Endpoint() string {
	return c.baseURL
}

type selectRequest struct {
	BranchID       string   `json:"branch_id"`
	ServicePointID string   `json:"service_point_id"`
	QueueIDs       []string `json:"queue_ids,omitempty"`
}

type selectResponse struct {
	VisitID string `json:"visit_id"`
}

// SelectNext asks the policy service to pick the next visit. An empty
// visit id in the response means the policy selected nothing.
func (c *HTTPPolicyClient) SelectNext(ctx context.Context, branchID, servicePointID string, queueIDs []string) (string, error) {
	body, err := json.Marshal(selectRequest{
		BranchID:       branchID,
		ServicePointID: servicePointID,
		QueueIDs:       queueIDs,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/select", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("policy service returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	var out selectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode policy response: %w", err)
	}
	return out.VisitID, nil
}
