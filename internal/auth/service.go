// Package auth provides admin authentication: bcrypt credential
// verification and opaque session tokens held in the cache layer.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/beacon-tracker/internal/domain"
	"github.com/prn-tf/beacon-tracker/internal/repository"
)

// Service handles admin authentication and session management.
type Service struct {
	adminRepo  repository.AdminRepository
	cache      repository.Cache
	sessionTTL time.Duration
	bcryptCost int
	logger     zerolog.Logger
}

// NewService creates a new auth service.
func NewService(
	adminRepo repository.AdminRepository,
	cache repository.Cache,
	sessionTTL time.Duration,
	bcryptCost int,
	logger zerolog.Logger,
) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		adminRepo:  adminRepo,
		cache:      cache,
		sessionTTL: sessionTTL,
		bcryptCost: bcryptCost,
		logger:     logger.With().Str("service", "auth").Logger(),
	}
}

// session is the cached session payload.
type session struct {
	AdminID  int64  `json:"admin_id"`
	Username string `json:"username"`
}

// CreateAdmin creates a new admin account with a bcrypt password hash.
func (s *Service) CreateAdmin(ctx context.Context, username, password string) (*domain.Admin, error) {
	if username == "" || password == "" {
		return nil, domain.NewDomainError(domain.ErrInvalidCredentials, "username and password are required", "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &domain.Admin{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.adminRepo.Create(ctx, admin); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("username", username).
		Int64("admin_id", admin.ID).
		Msg("admin account created")

	return admin, nil
}

// Login verifies credentials and opens a session. An unknown username
// and a wrong password both map to ErrInvalidCredentials so the
// response does not leak which usernames exist.
func (s *Service) Login(ctx context.Context, username, password string) (string, *domain.Admin, error) {
	admin, err := s.adminRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrAdminNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn().Str("username", username).Msg("failed login attempt")
		return "", nil, domain.ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", nil, err
	}

	payload, err := json.Marshal(session{AdminID: admin.ID, Username: admin.Username})
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	key := repository.CacheKey{}.Session(token)
	if err := s.cache.Set(ctx, key, payload, s.sessionTTL); err != nil {
		return "", nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.logger.Info().
		Str("username", username).
		Int64("admin_id", admin.ID).
		Msg("admin logged in")

	return token, admin, nil
}

// Authenticate resolves a session token to the admin it belongs to.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.Admin, error) {
	if token == "" {
		return nil, domain.ErrSessionExpired
	}

	key := repository.CacheKey{}.Session(token)
	payload, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrCacheMiss) {
			return nil, domain.ErrSessionExpired
		}
		return nil, err
	}

	var sess session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, domain.ErrSessionExpired
	}

	admin, err := s.adminRepo.GetByID(ctx, sess.AdminID)
	if err != nil {
		if errors.Is(err, domain.ErrAdminNotFound) {
			// Account removed since login; drop the session too.
			_ = s.cache.Delete(ctx, key)
			return nil, domain.ErrSessionExpired
		}
		return nil, err
	}

	return admin, nil
}

// Logout invalidates a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.cache.Delete(ctx, repository.CacheKey{}.Session(token))
}

// newToken returns 32 random bytes hex-encoded.
func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
