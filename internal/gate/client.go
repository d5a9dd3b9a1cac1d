package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// HTTPSource asks a remote /key endpoint for tokens.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

// Token implements Source.
func (s HTTPSource) Token(ctx context.Context, id string) (Token, error) {
	u, err := WithQuery(s.URL, id, 0)
	if err != nil {
		return Token{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Token{}, err
	}
	c := s.Client
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("gate request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Token{}, fmt.Errorf("gate request: %s", resp.Status)
	}
	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return Token{}, fmt.Errorf("gate response: %w", err)
	}
	return tok, nil
}

// WithQuery sets id (and exp, when non-zero) on the endpoint URL.
func WithQuery(endpoint, id string, exp int64) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("gate url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("gate url: unsupported scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("id", id)
	if exp != 0 {
		q.Set("exp", strconv.FormatInt(exp, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// IDFromURL returns the id query parameter of endpoint, if any.
func IDFromURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return ""
	}
	return u.Query().Get("id")
}
