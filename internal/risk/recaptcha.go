// Package risk scores sign-in attempts through the reCAPTCHA Enterprise
// assessment endpoint.
package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/diagnosis/passwordless-api/pkg/config"
	"github.com/diagnosis/passwordless-api/pkg/logger"
	"github.com/google/go-querystring/query"
)

const defaultBaseURL = "https://recaptchaenterprise.googleapis.com"

type Client struct {
	httpClient *http.Client
	baseURL    string
	siteKey    string
	projectID  string
	apiKey     string
	threshold  float64
}

func NewClient(cfg config.RecaptchaConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    defaultBaseURL,
		siteKey:    cfg.SiteKey,
		projectID:  cfg.ProjectID,
		apiKey:     cfg.APIKey,
		threshold:  cfg.Threshold,
	}
}

// Enabled reports whether assessment credentials are configured. Flows
// skip the risk check entirely when they are not.
func (c *Client) Enabled() bool {
	return c.siteKey != "" && c.projectID != "" && c.apiKey != ""
}

type assessmentQuery struct {
	Key string `url:"key"`
}

type assessmentEvent struct {
	Token          string `json:"token"`
	SiteKey        string `json:"siteKey"`
	ExpectedAction string `json:"expectedAction"`
}

type assessmentRequest struct {
	Event assessmentEvent `json:"event"`
}

type assessmentResponse struct {
	TokenProperties struct {
		Valid bool `json:"valid"`
	} `json:"tokenProperties"`
	RiskAnalysis struct {
		Score float64 `json:"score"`
	} `json:"riskAnalysis"`
}

// Assess is true only when the endpoint returns 200, the token is valid,
// and the risk score clears the configured threshold.
func (c *Client) Assess(ctx context.Context, token, expectedAction string) (bool, error) {
	payload, err := json.Marshal(assessmentRequest{Event: assessmentEvent{
		Token:          token,
		SiteKey:        c.siteKey,
		ExpectedAction: expectedAction,
	}})
	if err != nil {
		return false, fmt.Errorf("marshal assessment: %w", err)
	}

	qs, err := query.Values(assessmentQuery{Key: c.apiKey})
	if err != nil {
		return false, fmt.Errorf("encode assessment query: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/assessments?%s", c.baseURL, c.projectID, qs.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return false, fmt.Errorf("build assessment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("assessment request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.DebugContext(ctx, "Risk assessment rejected", "status", resp.StatusCode)
		return false, fmt.Errorf("assessment status %d", resp.StatusCode)
	}

	var body assessmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode assessment: %w", err)
	}

	return body.TokenProperties.Valid && body.RiskAnalysis.Score > c.threshold, nil
}
