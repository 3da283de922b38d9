// Package authapi verifica tokens contra el servicio de identidad
// (GoTrue o compatible) y los traduce a claims internos.
package authapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"breast-screening-service/internal/platform/httpclient"
	"breast-screening-service/internal/ports/auth"
)

var (
	ErrNotConfigured = errors.New("auth client not configured")
	ErrUnauthorized  = errors.New("auth unauthorized")
	ErrUpstream      = errors.New("auth upstream error")
)

// Config del cliente de identidad. BaseURL y APIKey vienen de env vars
// en quien lo instancia.
type Config struct {
	BaseURL string
	APIKey  string

	// Opcional: header donde viaja la API key. Default "apikey" (el que
	// usa GoTrue).
	APIKeyHeader string

	Timeout time.Duration
}

type Client struct {
	http         *httpclient.Client
	apiKey       string
	apiKeyHeader string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}
	header := strings.TrimSpace(cfg.APIKeyHeader)
	if header == "" {
		header = "apikey"
	}

	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	return &Client{
		http:         hc,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: header,
	}, nil
}

// app_metadata trae tipos mixtos (provider, providers[]...); solo nos
// interesa role, que es string.
type userResponse struct {
	ID          string         `json:"id"`
	Email       string         `json:"email"`
	AppMetadata map[string]any `json:"app_metadata"`
}

// VerifyToken consulta el usuario dueño del token. El rol viene en
// app_metadata.role; sin rol explícito se asume doctor, que es el rol
// de menor privilegio.
func (c *Client) VerifyToken(ctx context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrUnauthorized
	}

	headers := map[string]string{
		"Authorization": "Bearer " + token,
	}
	if c.apiKey != "" {
		headers[c.apiKeyHeader] = c.apiKey
	}

	var out userResponse
	err := c.http.DoJSON(ctx, "GET", "/auth/v1/user", headers, nil, &out)
	if err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && (httpErr.StatusCode == 401 || httpErr.StatusCode == 403) {
			return auth.Claims{}, ErrUnauthorized
		}
		return auth.Claims{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	out.ID = strings.TrimSpace(out.ID)
	if out.ID == "" {
		return auth.Claims{}, fmt.Errorf("%w: response missing user id", ErrUpstream)
	}

	rawRole, _ := out.AppMetadata["role"].(string)
	role, ok := auth.ParseRole(rawRole)
	if !ok {
		role = auth.RoleDoctor
	}

	return auth.Claims{
		UserID: out.ID,
		Email:  strings.TrimSpace(out.Email),
		Role:   role,
	}, nil
}
