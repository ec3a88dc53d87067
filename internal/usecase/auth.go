package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/core/port"
	"github.com/davinaleong/project-pulse-auth/internal/infra/logger"
	"github.com/davinaleong/project-pulse-auth/internal/infra/security"
	"github.com/davinaleong/project-pulse-auth/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email or password is incorrect.
	// Absent accounts and wrong passwords share this signal.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the lockout cooldown is active. Surfacing
	// it distinctly does not leak credential validity: the response is the
	// same whether the presented password was right or wrong.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountBanned indicates the account is banned.
	ErrAccountBanned = errors.New("account banned")
)

// LoginResult bundles the artifacts of a successful login.
type LoginResult struct {
	Account domain.Account
	Tokens  TokenPair
}

// RequestMeta carries boundary-supplied request metadata used for session
// records and event payloads.
type RequestMeta struct {
	IP        string
	UserAgent string
}

func (m RequestMeta) ipPtr() *string {
	if m.IP == "" {
		return nil
	}
	ip := m.IP
	return &ip
}

func (m RequestMeta) userAgentPtr() *string {
	if m.UserAgent == "" {
		return nil
	}
	ua := m.UserAgent
	return &ua
}

// AuthService orchestrates login, logout, refresh, and identity lookup on
// top of the lockout tracker and token issuer.
type AuthService struct {
	accounts port.AccountRepository
	lockout  *LockoutService
	tokens   *TokenService
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(accounts port.AccountRepository, lockout *LockoutService, tokens *TokenService, events port.EventPublisher, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		accounts: accounts,
		lockout:  lockout,
		tokens:   tokens,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock overrides the clock used by the service, primarily for tests.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Login validates credentials and issues a token pair. The lockout gate runs
// first so a locked account is rejected before any credential work; absent
// accounts and password mismatches are indistinguishable to the caller.
// Failures are keyed by the normalized email so attempts against unknown
// addresses are throttled the same way as attempts against real ones.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	locked, err := s.lockout.IsLocked(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check lockout: %w", err)
	}
	if locked {
		return nil, ErrAccountLocked
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.noteFailure(ctx, email)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	if account.Status == domain.AccountStatusBanned {
		return nil, ErrAccountBanned
	}

	ok, err := security.VerifyPassword(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.noteFailure(ctx, email)
		return nil, ErrInvalidCredentials
	}

	if err := s.lockout.RecordSuccess(ctx, email); err != nil {
		s.logger.Warn("clear lockout counter failed", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
	}

	now := s.now().UTC()
	if err := s.accounts.TouchLogin(ctx, account.ID, now); err != nil {
		s.logger.Warn("update last login failed", zap.String("account_id", account.ID), zap.Error(err))
	}

	pair, _, err := s.tokens.Issue(ctx, *account, meta.ipPtr(), meta.userAgentPtr())
	if err != nil {
		return nil, err
	}

	return &LoginResult{Account: account.Sanitized(), Tokens: pair}, nil
}

func (s *AuthService) noteFailure(ctx context.Context, email string) {
	count, err := s.lockout.RecordFailure(ctx, email)
	if err != nil {
		s.logger.Warn("record login failure failed", zap.String("email", logger.MaskEmail(email)), zap.Error(err))
		return
	}
	s.logger.Info("login failure recorded",
		zap.String("email", logger.MaskEmail(email)),
		zap.Int("consecutive_failures", count),
	)
}

// Refresh rotates the presented refresh token and returns a fresh pair.
// Failure is terminal; the caller must authenticate again.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (*LoginResult, error) {
	pair, account, err := s.tokens.Rotate(ctx, refreshToken, meta.ipPtr(), meta.userAgentPtr())
	if err != nil {
		return nil, err
	}
	return &LoginResult{Account: account, Tokens: pair}, nil
}

// Logout revokes the session referenced by a valid access token. A missing
// or invalid access token is rejected; an already-revoked session is treated
// as done.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return err
	}

	if err := s.tokens.RevokeSession(ctx, claims.SessionID); err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("revoke session: %w", err)
		}
		return nil
	}

	s.publishSessionRevoked(ctx, claims.SessionID, claims.AccountID, "logout")
	return nil
}

// CurrentUser resolves the access token to its account record with the
// credential material stripped.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (domain.Account, error) {
	claims, err := s.tokens.ParseAccessToken(accessToken)
	if err != nil {
		return domain.Account{}, err
	}

	account, err := s.accounts.GetByID(ctx, claims.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, ErrInvalidAccessToken
		}
		return domain.Account{}, fmt.Errorf("lookup account: %w", err)
	}

	return account.Sanitized(), nil
}

// ParseAccessToken exposes stateless claim validation for transport
// middleware.
func (s *AuthService) ParseAccessToken(token string) (*AccessTokenClaims, error) {
	return s.tokens.ParseAccessToken(token)
}

func (s *AuthService) publishSessionRevoked(ctx context.Context, sessionID, accountID, reason string) {
	if s.events == nil {
		return
	}

	event := domain.SessionRevokedEvent{
		EventID:   uuid.NewString(),
		SessionID: sessionID,
		AccountID: accountID,
		RevokedAt: s.now().UTC(),
		Reason:    reason,
	}

	if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("publish session revoked failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
