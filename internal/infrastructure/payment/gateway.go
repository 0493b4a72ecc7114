// Package payment is the boundary to the external processor. Nothing
// outside this package speaks the gateway's status vocabulary.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type ChargeRequest struct {
	ExternalReference string `json:"external_reference"`
	AmountMinor       int64  `json:"amount"`
	Currency          string `json:"currency"`
	ReturnURL         string `json:"return_url"`
}

type ChargeResponse struct {
	TransactionID string `json:"id"`
	RedirectURL   string `json:"init_point"`
	Status        string `json:"status"`
}

// Gateway is the raw processor client. Statuses returned here are in
// the gateway's own vocabulary; the Adapter maps them.
type Gateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
	// ChargeStatus looks a transaction up by its external reference.
	ChargeStatus(ctx context.Context, externalReference string) (string, error)
}

type httpGateway struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPGateway(baseURL, token string) Gateway {
	return &httpGateway{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *httpGateway) CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway charge: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("gateway charge: status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, &PermanentError{Code: resp.StatusCode}
	}

	var charge ChargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return nil, fmt.Errorf("gateway charge decode: %w", err)
	}
	return &charge, nil
}

func (g *httpGateway) ChargeStatus(ctx context.Context, externalReference string) (string, error) {
	u := g.baseURL + "/v1/charges?external_reference=" + url.QueryEscape(externalReference)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gateway status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway status: status %d", resp.StatusCode)
	}

	var charge ChargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&charge); err != nil {
		return "", fmt.Errorf("gateway status decode: %w", err)
	}
	return charge.Status, nil
}

// PermanentError marks a gateway rejection that retrying cannot fix.
type PermanentError struct {
	Code int
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("gateway rejected request: status %d", e.Code)
}
