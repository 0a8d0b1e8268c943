package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	// TokenPrefix identifies guidepost tokens
	TokenPrefix = "gp_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token
// Format: gp_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	fullToken := TokenPrefix + base64.RawURLEncoding.EncodeToString(randomBytes)
	return fullToken, tg.HashToken(fullToken), nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("%w: missing %q prefix", ErrTokenFormat, TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("%w: too short", ErrTokenFormat)
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("%w: %v", ErrTokenFormat, err)
	}
	return nil
}

// Validator resolves a presented bearer token to its record
type Validator interface {
	ValidateToken(ctx context.Context, token string) (*APIToken, error)
}

// TokenManager manages API token lifecycle in the api_tokens table
type TokenManager struct {
	db        *sql.DB
	generator *TokenGenerator
}

// NewTokenManager creates a new token manager
func NewTokenManager(db *sql.DB) *TokenManager {
	return &TokenManager{
		db:        db,
		generator: NewTokenGenerator(),
	}
}

// CreateToken issues a token. The plaintext is returned once and never stored.
func (tm *TokenManager) CreateToken(ctx context.Context, name string, resellerID *string, scopes []Scope, expiresAt *time.Time) (*APIToken, string, error) {
	token, tokenHash, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	apiToken := &APIToken{
		ID:         uuid.NewString(),
		TokenHash:  tokenHash,
		Name:       name,
		ResellerID: resellerID,
		Scopes:     scopes,
		ExpiresAt:  expiresAt,
	}

	var reseller sql.NullString
	if resellerID != nil {
		reseller = sql.NullString{String: *resellerID, Valid: true}
	}
	var expires sql.NullTime
	if expiresAt != nil {
		expires = sql.NullTime{Time: *expiresAt, Valid: true}
	}

	err = tm.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (id, token_hash, name, reseller_id, scopes, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, apiToken.ID, tokenHash, name, reseller, pq.Array(scopeStrings(scopes)), expires).Scan(&apiToken.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, token, nil
}

// ValidateToken looks up an unrevoked, unexpired token and stamps last_used_at
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*APIToken, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, err
	}

	t := &APIToken{TokenHash: tm.generator.HashToken(token)}
	var (
		reseller  sql.NullString
		scopes    []string
		expiresAt sql.NullTime
	)
	err := tm.db.QueryRowContext(ctx, `
		UPDATE api_tokens
		SET last_used_at = NOW()
		WHERE token_hash = $1
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > NOW())
		RETURNING id, name, reseller_id, scopes, expires_at, created_at
	`, t.TokenHash).Scan(&t.ID, &t.Name, &reseller, pq.Array(&scopes), &expiresAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to validate token: %w", err)
	}

	if reseller.Valid {
		id := reseller.String
		t.ResellerID = &id
	}
	if expiresAt.Valid {
		e := expiresAt.Time
		t.ExpiresAt = &e
	}
	for _, s := range scopes {
		t.Scopes = append(t.Scopes, Scope(s))
	}
	return t, nil
}

// RevokeToken revokes a token
func (tm *TokenManager) RevokeToken(ctx context.Context, tokenID string) error {
	result, err := tm.db.ExecContext(ctx,
		`UPDATE api_tokens SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, tokenID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrInvalidToken
	}
	return nil
}

func scopeStrings(scopes []Scope) []string {
	out := make([]string, len(scopes))
	for i, s := range scopes {
		out[i] = string(s)
	}
	return out
}
