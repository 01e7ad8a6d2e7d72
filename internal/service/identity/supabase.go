// Package identity verifies bearer tokens against the Supabase auth service.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Mayuresh-22/NimbusWave/pkg/config"
)

// ErrUnauthorized indicates the token is missing, malformed, expired, or
// rejected upstream.
var ErrUnauthorized = errors.New("identity: invalid or expired token")

// Identity is the authenticated principal behind a bearer token.
type Identity struct {
	ID       string          `json:"id"`
	Email    string          `json:"email"`
	Metadata json.RawMessage `json:"user_metadata"`
}

// Client resolves bearer tokens to identities. When a JWT secret is
// configured, tokens are verified locally; otherwise each token is checked
// against the auth endpoint.
type Client struct {
	baseURL    string
	anonKey    string
	jwtSecret  string
	httpClient *http.Client
	logger     *slog.Logger
}

// New returns an identity client.
func New(cfg config.APIConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.SupabaseURL, "/"),
		anonKey:    cfg.SupabaseAnonKey,
		jwtSecret:  cfg.SupabaseJWTSecret,
		httpClient: &http.Client{Timeout: cfg.UpstreamTimeout},
		logger:     logger,
	}
}

// GetUser resolves the bearer token to an identity.
func (c *Client) GetUser(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrUnauthorized
	}
	if c.jwtSecret != "" {
		return c.verifyLocal(token)
	}
	return c.verifyRemote(ctx, token)
}

type accessClaims struct {
	Email        string          `json:"email"`
	UserMetadata json.RawMessage `json:"user_metadata"`
	jwt.RegisteredClaims
}

func (c *Client) verifyLocal(token string) (*Identity, error) {
	claims := &accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(c.jwtSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrUnauthorized
	}
	return &Identity{ID: claims.Subject, Email: claims.Email, Metadata: claims.UserMetadata}, nil
}

func (c *Client) verifyRemote(ctx context.Context, token string) (*Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: auth request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity: auth service returned status %d", resp.StatusCode)
	}

	var identity Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("identity: decode auth response: %w", err)
	}
	if identity.ID == "" {
		return nil, ErrUnauthorized
	}
	return &identity, nil
}
