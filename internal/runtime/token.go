package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TokenSource supplies the editor access token for a running sandbox.
type TokenSource interface {
	Token(ctx context.Context, apiURL string) (string, error)
}

// ConnectionTokenSource asks the control endpoint for the editor token.
type ConnectionTokenSource struct {
	Client *http.Client
}

func (s *ConnectionTokenSource) Token(ctx context.Context, apiURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	u := apiURL + "/vscode/connection_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", &StatusError{URL: u, StatusCode: resp.StatusCode}
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding editor token: %w", err)
	}
	return body.Token, nil
}
