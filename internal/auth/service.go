package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/kakeibo/internal"
	"github.com/frahmantamala/kakeibo/internal/session"
	"golang.org/x/crypto/bcrypt"
)

var ErrCredentialNotFound = errors.New("credential not found")

type CredentialRepository interface {
	FindByUsername(ctx context.Context, username string) (*Credential, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, username, passwordHash string) (*Credential, error)
	UpdatePasswordHash(ctx context.Context, username, passwordHash string) error
}

type Options struct {
	AdminUsername   string
	DefaultPassword string
	BCryptCost      int
	SessionTTL      time.Duration
	// Rolling extends a session's expiry on every authenticated request.
	Rolling bool
}

// Service is the session gate: it turns a password into a server-held
// session and answers whether a session grants access.
type Service struct {
	repo   CredentialRepository
	store  session.Store
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo CredentialRepository, store session.Store, opts Options, logger *slog.Logger) *Service {
	if opts.BCryptCost == 0 {
		opts.BCryptCost = bcrypt.DefaultCost
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.AdminUsername == "" {
		opts.AdminUsername = internal.DefaultAdminUsername
	}
	return &Service{
		repo:   repo,
		store:  store,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) SessionTTL() time.Duration {
	return s.opts.SessionTTL
}

// Login checks the password against the admin credential and, on success,
// stores a fresh authenticated session.
func (s *Service) Login(ctx context.Context, dto LoginDTO) (*session.Session, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	cred, err := s.repo.FindByUsername(ctx, s.opts.AdminUsername)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			s.logger.Warn("login attempt without a provisioned credential", "username", s.opts.AdminUsername)
			return nil, internal.ErrInvalidCredentials
		}
		s.logger.Error("failed to load credential", "error", err)
		return nil, internal.NewStoreError("Database error", err)
	}

	if err := VerifyPassword(cred.PasswordHash, dto.Password); err != nil {
		s.logger.Warn("login failed: password mismatch", "username", cred.Username)
		return nil, internal.ErrInvalidCredentials
	}

	id, err := session.NewID()
	if err != nil {
		return nil, internal.NewInternalError("Failed to create session", err)
	}

	now := s.now()
	sess := &session.Session{
		ID:            id,
		Authenticated: true,
		User:          &session.User{ID: cred.ID, Username: cred.Username},
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.opts.SessionTTL),
	}
	if err := s.store.Save(ctx, sess, s.opts.SessionTTL); err != nil {
		s.logger.Error("failed to save session", "error", err)
		return nil, internal.NewInternalError("Failed to create session", err)
	}

	s.logger.Info("login succeeded", "username", cred.Username)
	return sess, nil
}

// Logout destroys the session. Unknown ids succeed.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.store.Delete(ctx, sessionID); err != nil {
		s.logger.Error("failed to destroy session", "error", err)
		return internal.NewInternalError("Logout failed", err)
	}
	return nil
}

// Resolve loads the session for id. Missing and expired sessions both
// yield (nil, nil); only store failures are errors.
func (s *Service) Resolve(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, nil
	}

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	now := s.now()
	if !sess.Valid(now) {
		return nil, nil
	}

	if s.opts.Rolling {
		sess.ExpiresAt = now.Add(s.opts.SessionTTL)
		if err := s.store.Save(ctx, sess, s.opts.SessionTTL); err != nil {
			return nil, fmt.Errorf("renew session: %w", err)
		}
	}
	return sess, nil
}

// Status never fails and has no side effects.
func (s *Service) Status(sess *session.Session) StatusResponse {
	if !sess.Valid(s.now()) {
		return StatusResponse{Authenticated: false, User: nil}
	}
	return StatusResponse{Authenticated: true, User: sess.User}
}

func (s *Service) RequireAuthenticated(sess *session.Session) error {
	if !sess.Valid(s.now()) {
		return internal.ErrAuthRequired
	}
	return nil
}

// EnsureDefaultUser provisions the admin credential with the default
// password when no credential exists. An existing credential is never
// touched.
func (s *Service) EnsureDefaultUser(ctx context.Context) (bool, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count credentials: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	hash, err := HashPassword(s.opts.DefaultPassword, s.opts.BCryptCost)
	if err != nil {
		return false, fmt.Errorf("hash default password: %w", err)
	}
	if _, err := s.repo.Create(ctx, s.opts.AdminUsername, hash); err != nil {
		return false, fmt.Errorf("create default credential: %w", err)
	}

	s.logger.Warn("default credential created; change the password with `kakeibo admin set-password`",
		"username", s.opts.AdminUsername)
	return true, nil
}

// UsingDefaultPassword reports whether the admin still logs in with the
// default password.
func (s *Service) UsingDefaultPassword(ctx context.Context) (bool, error) {
	cred, err := s.repo.FindByUsername(ctx, s.opts.AdminUsername)
	if err != nil {
		if errors.Is(err, ErrCredentialNotFound) {
			return false, nil
		}
		return false, err
	}
	return VerifyPassword(cred.PasswordHash, s.opts.DefaultPassword) == nil, nil
}

// SetPassword replaces the password of username, creating the credential
// if it does not exist yet.
func (s *Service) SetPassword(ctx context.Context, username, password string) error {
	if username == "" {
		username = s.opts.AdminUsername
	}
	if password == "" {
		return internal.ErrPasswordRequired
	}

	hash, err := HashPassword(password, s.opts.BCryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	err = s.repo.UpdatePasswordHash(ctx, username, hash)
	if errors.Is(err, ErrCredentialNotFound) {
		_, err = s.repo.Create(ctx, username, hash)
	}
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}

	s.logger.Info("password updated", "username", username)
	return nil
}
