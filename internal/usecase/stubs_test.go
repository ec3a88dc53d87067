package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/davinaleong/project-pulse-auth/internal/core/domain"
	"github.com/davinaleong/project-pulse-auth/internal/core/port"
	"github.com/davinaleong/project-pulse-auth/internal/repository"
)

// testAccountRepo is a map-backed AccountRepository. Methods the test under
// construction does not expect fail loudly.
type testAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*domain.Account
}

func newTestAccountRepo(accounts ...domain.Account) *testAccountRepo {
	repo := &testAccountRepo{accounts: make(map[string]*domain.Account)}
	for i := range accounts {
		copied := accounts[i]
		repo.accounts[copied.ID] = &copied
	}
	return repo
}

func (r *testAccountRepo) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[account.ID]; ok {
		return errors.New("duplicate account id")
	}
	r.accounts[account.ID] = &account
	return nil
}

func (r *testAccountRepo) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account, ok := r.accounts[id]; ok {
		copied := *account
		return &copied, nil
	}
	return nil, repository.ErrNotFound
}

func (r *testAccountRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *testAccountRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.PasswordHash = passwordHash
	return nil
}

func (r *testAccountRepo) UpdateStatus(_ context.Context, id string, status domain.AccountStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.Status = status
	return nil
}

func (r *testAccountRepo) MarkEmailVerified(_ context.Context, id string, verifiedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.Status = domain.AccountStatusActive
	account.EmailVerifiedAt = &verifiedAt
	return nil
}

func (r *testAccountRepo) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	account.LastLoginAt = &at
	return nil
}

// testSessionRepo keeps sessions in memory with the same conditional-update
// semantics as the Postgres implementation.
type testSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newTestSessionRepo() *testSessionRepo {
	return &testSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (r *testSessionRepo) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = &session
	return nil
}

func (r *testSessionRepo) GetByTokenHash(_ context.Context, hash string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, session := range r.sessions {
		if session.TokenHash == hash {
			copied := *session
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *testSessionRepo) RevokeIfActive(_ context.Context, sessionID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	if !ok || session.RevokedAt != nil || !at.Before(session.ExpiresAt) {
		return repository.ErrNotFound
	}
	session.RevokedAt = &at
	return nil
}

func (r *testSessionRepo) RevokeAllForAccount(_ context.Context, accountID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	revoked := 0
	for _, session := range r.sessions {
		if session.AccountID == accountID && session.RevokedAt == nil && at.Before(session.ExpiresAt) {
			session.RevokedAt = &at
			revoked++
		}
	}
	return revoked, nil
}

func (r *testSessionRepo) activeCount(accountID string, at time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, session := range r.sessions {
		if session.AccountID == accountID && session.Active(at) {
			count++
		}
	}
	return count
}

// testRecoveryTokenRepo mirrors the conditional consume of the Postgres
// implementation.
type testRecoveryTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.RecoveryToken
}

func newTestRecoveryTokenRepo() *testRecoveryTokenRepo {
	return &testRecoveryTokenRepo{tokens: make(map[string]*domain.RecoveryToken)}
}

func (r *testRecoveryTokenRepo) Create(_ context.Context, token domain.RecoveryToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.ID] = &token
	return nil
}

func (r *testRecoveryTokenRepo) GetByTokenHash(_ context.Context, hash string) (*domain.RecoveryToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.TokenHash == hash {
			copied := *token
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *testRecoveryTokenRepo) ConsumeIfFresh(_ context.Context, tokenID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenID]
	if !ok || token.ConsumedAt != nil || !at.Before(token.ExpiresAt) {
		return repository.ErrNotFound
	}
	token.ConsumedAt = &at
	return nil
}

func (r *testRecoveryTokenRepo) DeleteForAccount(_ context.Context, accountID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, token := range r.tokens {
		if token.AccountID == accountID {
			delete(r.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *testRecoveryTokenRepo) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, token := range r.tokens {
		if !before.Before(token.ExpiresAt) {
			delete(r.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *testRecoveryTokenRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// testLockoutStore keeps failure counters without TTL semantics; cooldown
// expiry is not exercised through this stub.
type testLockoutStore struct {
	mu     sync.Mutex
	counts map[string]int
}

func newTestLockoutStore() *testLockoutStore {
	return &testLockoutStore{counts: make(map[string]int)}
}

func (s *testLockoutStore) Increment(_ context.Context, key string, _ time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

func (s *testLockoutStore) Failures(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key], nil
}

func (s *testLockoutStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, key)
	return nil
}

// testRateLimitStore is an in-memory sliding window implementing the same
// contract as the Redis store.
type testRateLimitStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
}

func newTestRateLimitStore() *testRateLimitStore {
	return &testRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (s *testRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := reference.Add(-window)
	kept := s.attempts[identifier][:0]
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	s.attempts[identifier] = kept
	return nil
}

func (s *testRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := reference.Add(-window)
	count := 0
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) {
			count++
		}
	}
	return count, nil
}

func (s *testRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[identifier] = append(s.attempts[identifier], at)
	return nil
}

func (s *testRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := reference.Add(-window)
	var inWindow []time.Time
	for _, at := range s.attempts[identifier] {
		if at.After(cutoff) {
			inWindow = append(inWindow, at)
		}
	}
	if len(inWindow) == 0 {
		return time.Time{}, false, nil
	}
	sort.Slice(inWindow, func(i, j int) bool { return inWindow[i].Before(inWindow[j]) })
	return inWindow[0], true, nil
}

// testMailer records sent tokens per recipient.
type testMailer struct {
	mu           sync.Mutex
	resets       map[string]string
	verification map[string]string
}

func newTestMailer() *testMailer {
	return &testMailer{resets: make(map[string]string), verification: make(map[string]string)}
}

func (m *testMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets[email] = token
	return nil
}

func (m *testMailer) SendEmailVerification(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verification[email] = token
	return nil
}

// testEventPublisher counts published events by type.
type testEventPublisher struct {
	mu              sync.Mutex
	registered      []domain.AccountRegisteredEvent
	resetRequested  []domain.PasswordResetRequestedEvent
	passwordChanged []domain.PasswordChangedEvent
	emailVerified   []domain.EmailVerifiedEvent
	sessionRevoked  []domain.SessionRevokedEvent
	statusChanged   []domain.AccountStatusChangedEvent
}

func (p *testEventPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered = append(p.registered, event)
	return nil
}

func (p *testEventPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetRequested = append(p.resetRequested, event)
	return nil
}

func (p *testEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.passwordChanged = append(p.passwordChanged, event)
	return nil
}

func (p *testEventPublisher) PublishEmailVerified(_ context.Context, event domain.EmailVerifiedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emailVerified = append(p.emailVerified, event)
	return nil
}

func (p *testEventPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sessionRevoked = append(p.sessionRevoked, event)
	return nil
}

func (p *testEventPublisher) PublishAccountStatusChanged(_ context.Context, event domain.AccountStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanged = append(p.statusChanged, event)
	return nil
}

// testStatusStore applies status changes against the map-backed repositories,
// mirroring what the transactional store does against PostgreSQL.
type testStatusStore struct {
	accounts *testAccountRepo
	sessions *testSessionRepo
	tokens   *testRecoveryTokenRepo
}

func (s *testStatusStore) SetStatus(ctx context.Context, accountID string, status domain.AccountStatus, at time.Time) (port.StatusChangeResult, error) {
	var result port.StatusChangeResult

	if err := s.accounts.UpdateStatus(ctx, accountID, status); err != nil {
		return result, err
	}

	if status == domain.AccountStatusBanned {
		revoked, err := s.sessions.RevokeAllForAccount(ctx, accountID, at)
		if err != nil {
			return result, err
		}
		result.SessionsRevoked = revoked

		purged, err := s.tokens.DeleteForAccount(ctx, accountID)
		if err != nil {
			return result, err
		}
		result.TokensPurged = purged
	}

	return result, nil
}
