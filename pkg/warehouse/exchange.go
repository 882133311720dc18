package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPExchanger exchanges delegated session tokens for warehouse
// credentials against a platform token-exchange endpoint (RFC 8693
// shape). It is the standard TokenExchanger for hosted deployments.
type HTTPExchanger struct {
	endpoint string
	client   *http.Client
}

// NewHTTPExchanger creates an exchanger for the given endpoint. client
// may be nil; a 10s-timeout client is used by default.
func NewHTTPExchanger(endpoint string, client *http.Client) *HTTPExchanger {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPExchanger{endpoint: endpoint, client: client}
}

// Exchange swaps a session token for a short-lived warehouse credential.
func (e *HTTPExchanger) Exchange(ctx context.Context, sessionToken string) (AccessToken, error) {
	form := url.Values{
		"grant_type":         {"urn:ietf:params:oauth:grant-type:token-exchange"},
		"subject_token":      {sessionToken},
		"subject_token_type": {"urn:posit:connect:user-session-token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return AccessToken{}, fmt.Errorf("token exchange request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return AccessToken{}, fmt.Errorf("token exchange failed: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"issued_token_type"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return AccessToken{}, fmt.Errorf("decoding token exchange response: %w", err)
	}
	if body.AccessToken == "" {
		return AccessToken{}, fmt.Errorf("token exchange returned an empty token")
	}

	return AccessToken{Authenticator: "oauth", Token: body.AccessToken}, nil
}

var _ TokenExchanger = (*HTTPExchanger)(nil)
