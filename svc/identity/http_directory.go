package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Config holds the identity provider's admin API settings.
type Config struct {
	BaseURL    string        `env:"AUTH_API_URL,required"`
	ServiceKey string        `env:"AUTH_SERVICE_KEY,required"`
	Timeout    time.Duration `env:"AUTH_TIMEOUT" envDefault:"10s"`
}

// HTTPDirectory resolves users through the identity provider's admin API.
type HTTPDirectory struct {
	baseURL string
	key     string
	client  *http.Client
}

// NewHTTPDirectory returns a Directory backed by the provider's admin API.
func NewHTTPDirectory(cfg Config) (*HTTPDirectory, error) {
	if cfg.BaseURL == "" || cfg.ServiceKey == "" {
		return nil, errors.New("identity: base URL and service key are required")
	}
	return &HTTPDirectory{
		baseURL: cfg.BaseURL,
		key:     cfg.ServiceKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (d *HTTPDirectory) UserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return d.fetch(ctx, "/admin/users/"+id.String())
}

func (d *HTTPDirectory) UserByEmail(ctx context.Context, email string) (*User, error) {
	return d.fetch(ctx, "/admin/users?email="+url.QueryEscape(email))
}

func (d *HTTPDirectory) fetch(ctx context.Context, path string) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.key)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Join(ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrUserNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("identity: unexpected status %d", resp.StatusCode)
	}

	var payload struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("identity: decode response: %w", err)
	}
	if payload.ID == uuid.Nil {
		return nil, ErrUserNotFound
	}

	return &User{ID: payload.ID, Email: payload.Email}, nil
}
