package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ideaflow/internal/model"
	"ideaflow/pkg/util"
)

type AuthService struct {
	profiles  ProfileStore
	jwtSecret string
	jwtTTL    time.Duration
	logger    *zap.Logger
}

func NewAuthService(profiles ProfileStore, jwtSecret string, jwtTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{profiles: profiles, jwtSecret: jwtSecret, jwtTTL: jwtTTL, logger: logger}
}

// Login checks credentials and returns a signed token for active users.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *model.Profile, error) {
	p, err := s.profiles.GetProfileByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", nil, model.ErrInvalidCredential
		}
		return "", nil, err
	}
	if !util.CheckPassword(password, p.PasswordHash) {
		return "", nil, model.ErrInvalidCredential
	}
	if !p.IsActive {
		s.logger.Warn("Blocked user attempted login", zap.String("user_id", p.ID.String()))
		return "", nil, model.ErrUserBlocked
	}

	token, err := util.GenerateJWT(p.ID, string(p.Role), s.jwtSecret, s.jwtTTL)
	if err != nil {
		return "", nil, err
	}
	return token, p, nil
}

// Me returns the caller's profile; blocked users lose access immediately.
func (s *AuthService) Me(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, model.ErrUserBlocked
	}
	return p, nil
}
