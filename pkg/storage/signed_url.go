package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrInvalidToken covers malformed, tampered or mismatched download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadClaims is what a download token vouches for: one rendered schedule of a
// proposal, in one format, at one stored path.
type DownloadClaims struct {
	ProposalID string `json:"pid"`
	Rank       int    `json:"rank"`
	Format     string `json:"fmt"`
	Path       string `json:"path"`
	ExpiresAt  int64  `json:"exp"`
}

// Expiry returns the expiry as a time.
func (c DownloadClaims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

func (c DownloadClaims) validate() error {
	if c.ProposalID == "" || c.Path == "" || c.Format == "" {
		return fmt.Errorf("%w: proposal, path and format required", ErrInvalidToken)
	}
	if c.Rank < 1 {
		return fmt.Errorf("%w: rank must be positive", ErrInvalidToken)
	}
	if ext := strings.TrimPrefix(filepath.Ext(c.Path), "."); !strings.EqualFold(ext, c.Format) {
		return fmt.Errorf("%w: path %q is not a %s export", ErrInvalidToken, c.Path, c.Format)
	}
	return nil
}

// SignedURLSigner issues HMAC-signed, expiring download tokens for exported files.
// A token is "<base64url claims>.<hex hmac>".
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer; a non-positive ttl means one day.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate signs claims, stamping their expiry from the signer TTL.
func (s *SignedURLSigner) Generate(claims DownloadClaims) (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, errors.New("signing secret missing")
	}
	claims.Format = strings.ToLower(claims.Format)
	if err := claims.validate(); err != nil {
		return "", time.Time{}, err
	}
	claims.ExpiresAt = s.now().Add(s.ttl).Unix()

	raw, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("encode claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + s.sign(payload), claims.Expiry(), nil
}

// Parse verifies a token and returns its claims. allowExpired skips the expiry check.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (DownloadClaims, error) {
	payload, signature, ok := strings.Cut(token, ".")
	if !ok || payload == "" || signature == "" {
		return DownloadClaims{}, fmt.Errorf("%w: malformed", ErrInvalidToken)
	}
	if !hmac.Equal([]byte(s.sign(payload)), []byte(signature)) {
		return DownloadClaims{}, fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return DownloadClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var claims DownloadClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return DownloadClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := claims.validate(); err != nil {
		return DownloadClaims{}, err
	}
	if !allowExpired && s.now().After(claims.Expiry()) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}

func (s *SignedURLSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
