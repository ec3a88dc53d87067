package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/core/port"
	"github.com/davinaleong/project-pulse-auth/internal/infra/config"
	"github.com/davinaleong/project-pulse-auth/internal/infra/security"
	"github.com/davinaleong/project-pulse-auth/internal/repository"
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour

	refreshTokenBytes = 32
)

var (
	// ErrInvalidAccessToken indicates the access token is malformed or its
	// signature failed validation.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInvalidRefreshToken covers refresh tokens that are absent, revoked,
	// already rotated, or expired. The states are deliberately collapsed.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// AccessTokenClaims carries the identity payload embedded in access tokens.
// Validity is cryptographic plus expiry; claims are never looked up in
// storage, so an access token outlives session revocation until it expires.
type AccessTokenClaims struct {
	AccountID string `json:"uid"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenPair bundles the two credentials returned by login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService mints and validates access tokens and manages the stateful
// refresh-token side: issuance, first-wins rotation, and revocation.
type TokenService struct {
	cfg      *config.AppConfig
	accounts port.AccountRepository
	sessions port.SessionRepository
	now      func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(cfg *config.AppConfig, accounts port.AccountRepository, sessions port.SessionRepository) *TokenService {
	return &TokenService{
		cfg:      cfg,
		accounts: accounts,
		sessions: sessions,
		now:      time.Now,
	}
}

// WithClock overrides the clock used by the service, primarily for tests.
func (s *TokenService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *TokenService) accessTTL() time.Duration {
	if ttl := s.cfg.JWT.AccessTokenTTL; ttl > 0 {
		return ttl
	}
	return defaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if ttl := s.cfg.JWT.RefreshTokenTTL; ttl > 0 {
		return ttl
	}
	return defaultRefreshTokenTTL
}

// Issue creates a new session for the account and returns the signed access
// token together with the raw opaque refresh token.
func (s *TokenService) Issue(ctx context.Context, account domain.Account, ip, userAgent *string) (TokenPair, *domain.Session, error) {
	return s.issue(ctx, account, ip, userAgent, nil)
}

func (s *TokenService) issue(ctx context.Context, account domain.Account, ip, userAgent *string, rotatedFrom *string) (TokenPair, *domain.Session, error) {
	if account.ID == "" {
		return TokenPair{}, nil, fmt.Errorf("account id is required")
	}

	rawRefresh, err := security.GenerateSecureToken(refreshTokenBytes)
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("generate refresh token: %w", err)
	}

	now := s.now().UTC()
	session := domain.Session{
		ID:          uuid.NewString(),
		AccountID:   account.ID,
		TokenHash:   security.HashToken(rawRefresh),
		IP:          ip,
		UserAgent:   userAgent,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.refreshTTL()),
		RotatedFrom: rotatedFrom,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return TokenPair{}, nil, fmt.Errorf("store session: %w", err)
	}

	access, err := s.signAccessToken(account, session.ID, now)
	if err != nil {
		return TokenPair{}, nil, err
	}

	return TokenPair{AccessToken: access, RefreshToken: rawRefresh}, &session, nil
}

func (s *TokenService) signAccessToken(account domain.Account, sessionID string, now time.Time) (string, error) {
	claims := AccessTokenClaims{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      string(account.Role),
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    s.cfg.App.Name,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL())),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWT.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// ParseAccessToken validates the access token signature and expiry and
// returns its claims. No storage lookup happens here.
func (s *TokenService) ParseAccessToken(token string) (*AccessTokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidAccessToken
	}

	claims := &AccessTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWT.Secret), nil
	}, jwt.WithIssuer(s.cfg.App.Name), jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidAccessToken
	}
	if strings.TrimSpace(claims.AccountID) == "" || strings.TrimSpace(claims.SessionID) == "" {
		return nil, ErrInvalidAccessToken
	}

	return claims, nil
}

// Rotate exchanges a refresh token for a new access/refresh pair. The
// presented token is revoked through a conditional update before the
// replacement is issued, so of two concurrent rotations on the same token
// exactly one succeeds and the other fails with ErrInvalidRefreshToken.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string, ip, userAgent *string) (TokenPair, domain.Account, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
	}

	hash := security.HashToken(refreshToken)
	session, err := s.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, domain.Account{}, fmt.Errorf("lookup session: %w", err)
	}

	now := s.now().UTC()
	if !session.Active(now) {
		return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
	}

	account, err := s.accounts.GetByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	if account.Status == domain.AccountStatusBanned {
		return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
	}

	// Invalidate first: the conditional update decides the winner of any
	// rotation race before a replacement exists.
	if err := s.sessions.RevokeIfActive(ctx, session.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return TokenPair{}, domain.Account{}, ErrInvalidRefreshToken
		}
		return TokenPair{}, domain.Account{}, fmt.Errorf("revoke rotated session: %w", err)
	}

	pair, _, err := s.issue(ctx, *account, ip, userAgent, &session.ID)
	if err != nil {
		return TokenPair{}, domain.Account{}, err
	}

	return pair, account.Sanitized(), nil
}

// RevokeSession marks the session revoked. A session that is already revoked
// or unknown yields repository.ErrNotFound, which callers may treat as
// already-done.
func (s *TokenService) RevokeSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	return s.sessions.RevokeIfActive(ctx, sessionID, s.now().UTC())
}
