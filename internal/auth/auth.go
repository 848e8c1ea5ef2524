// Package auth stores the API token used by the http backend.
package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	credFileName = "credentials.json"
	// EnvToken overrides any saved token.
	EnvToken = "TADA_TOKEN"
)

type TokenInfo struct {
	Token     string     `json:"token"`
	Source    string     `json:"source"`     // "env" | "file"
	CreatedAt time.Time  `json:"created_at"` // when we saved to file
	ExpiresAt *time.Time `json:"expires_at"` // optional (JWT or server-provided)
}

// Expired reports whether the token has a known expiry in the past.
func (t *TokenInfo) Expired(now time.Time) bool {
	return t != nil && t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}

func credsDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, ".tada"), nil
}

func credFilePath() (string, error) {
	dir, err := credsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, credFileName), nil
}

// Get returns the current token, or nil when not logged in.
func Get() (*TokenInfo, error) {
	// 1) env override
	if env := strings.TrimSpace(os.Getenv(EnvToken)); env != "" {
		return &TokenInfo{Token: stripBearer(env), Source: "env"}, nil
	}

	// 2) file
	p, err := credFilePath()
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil // not logged in
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var ti TokenInfo
	if err := json.Unmarshal(b, &ti); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	ti.Token = stripBearer(ti.Token)
	return &ti, nil
}

// Set saves token to ~/.tada/credentials.json, readable by the owner only.
// A nil expires is filled from the token's JWT exp claim when present.
func Set(token string, expires *time.Time) error {
	token = strings.TrimSpace(stripBearer(strings.TrimSpace(token)))
	if token == "" {
		return fmt.Errorf("empty token")
	}
	if expires == nil {
		if c, err := Claims(token); err == nil {
			expires = c.Expiry()
		}
	}
	dir, err := credsDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	ti := TokenInfo{
		Token:     token,
		Source:    "file",
		CreatedAt: time.Now(),
		ExpiresAt: expires,
	}
	b, err := json.MarshalIndent(ti, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	p := filepath.Join(dir, credFileName)
	if err := os.WriteFile(p, b, 0o600); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

// Delete removes the saved token. A missing file is not an error.
func Delete() error {
	p, err := credFilePath()
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// JWTClaims is the decoded, unverified payload of a JWT.
type JWTClaims map[string]any

// Expiry returns the exp claim as a time, if present.
func (c JWTClaims) Expiry() *time.Time {
	exp, ok := c["exp"].(float64)
	if !ok {
		return nil
	}
	t := time.Unix(int64(exp), 0).UTC()
	return &t
}

// Claims decodes the payload of a JWT without verifying it.
// Opaque tokens return an error.
func Claims(token string) (JWTClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("not a JWT")
	}
	payload, err := decodeB64URL(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	var c JWTClaims
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return c, nil
}

func decodeB64URL(s string) ([]byte, error) {
	dec, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, err
	}
	return dec, nil
}

// stripBearer drops a leading "Bearer " scheme. A bare scheme yields "".
func stripBearer(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "bearer") {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
