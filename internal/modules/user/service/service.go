package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"time"

	"edvora.com/lms/internal/entity"
	"edvora.com/lms/internal/modules/user/dto"
	"edvora.com/lms/internal/modules/user/repository"
	"edvora.com/lms/pkg/apperror"
	"edvora.com/lms/pkg/cache"
	"edvora.com/lms/pkg/mailer"
	"edvora.com/lms/pkg/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const avatarFolder = "avatars"

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Service interface {
	Register(ctx context.Context, req dto.RegisterRequest) (string, error)
	Activate(ctx context.Context, req dto.ActivateRequest) error
	Login(ctx context.Context, req dto.LoginRequest) (*entity.User, *TokenPair, error)
	SocialAuth(ctx context.Context, req dto.SocialAuthRequest) (*entity.User, *TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	Refresh(ctx context.Context, refreshToken string) (*entity.User, *TokenPair, error)
	Me(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	UpdateInfo(ctx context.Context, userID uuid.UUID, req dto.UpdateInfoRequest) (*entity.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, req dto.UpdatePasswordRequest) (*entity.User, error)
	UpdateAvatar(ctx context.Context, userID uuid.UUID, payload string) (*entity.User, error)
	GetAllUsers(ctx context.Context) ([]entity.User, error)
	UpdateRole(ctx context.Context, req dto.UpdateRoleRequest) (*entity.User, error)
}

type service struct {
	repo         repository.UserRepository
	sessions     cache.Store
	imageStorage storage.ImageStorage
	mail         mailer.Mailer

	accessSecret     string
	refreshSecret    string
	activationSecret string
	accessTTL        time.Duration
	refreshTTL       time.Duration
}

func NewService(repo repository.UserRepository, sessions cache.Store, imageStorage storage.ImageStorage, mail mailer.Mailer) Service {
	return &service{
		repo:             repo,
		sessions:         sessions,
		imageStorage:     imageStorage,
		mail:             mail,
		accessSecret:     secretFromEnv("ACCESS_TOKEN_SECRET", "change-me"),
		refreshSecret:    secretFromEnv("REFRESH_TOKEN_SECRET", "change-me-too"),
		activationSecret: secretFromEnv("ACTIVATION_TOKEN_SECRET", "change-me-as-well"),
		accessTTL:        5 * time.Minute,
		refreshTTL:       7 * 24 * time.Hour,
	}
}

func secretFromEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// activationClaims carries the pending registration inside the activation JWT,
// so nothing is persisted until the code is confirmed.
type activationClaims struct {
	User           pendingUser `json:"user"`
	ActivationCode string      `json:"activation_code"`
	jwt.RegisteredClaims
}

type pendingUser struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *service) Register(ctx context.Context, req dto.RegisterRequest) (string, error) {
	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return "", fmt.Errorf("email already exists: %w", apperror.ErrBadRequest)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	code := fmt.Sprintf("%04d", 1000+rand.Intn(9000))

	claims := activationClaims{
		User:           pendingUser{Name: req.Name, Email: req.Email, Password: req.Password},
		ActivationCode: code,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.activationSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign activation token: %w", err)
	}

	mailData := map[string]any{"Name": req.Name, "ActivationCode": code}
	if err := s.mail.Send(req.Email, "Activate your account", "activation-mail", mailData); err != nil {
		return "", fmt.Errorf("%v: %w", err, apperror.ErrUpstream)
	}

	return token, nil
}

func (s *service) Activate(ctx context.Context, req dto.ActivateRequest) error {
	var claims activationClaims
	token, err := jwt.ParseWithClaims(req.ActivationToken, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.activationSecret), nil
	})
	if err != nil || !token.Valid {
		return fmt.Errorf("invalid or expired activation token: %w", apperror.ErrBadRequest)
	}

	if claims.ActivationCode != req.ActivationCode {
		return fmt.Errorf("invalid activation code: %w", apperror.ErrBadRequest)
	}

	if _, err := s.repo.FindByEmail(ctx, claims.User.Email); err == nil {
		return fmt.Errorf("email already exists: %w", apperror.ErrBadRequest)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(claims.User.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	user := &entity.User{
		Name:         claims.User.Name,
		Email:        claims.User.Email,
		PasswordHash: string(hash),
		Role:         entity.RoleUser,
		IsVerified:   true,
	}

	return s.repo.Create(ctx, user)
}

func (s *service) Login(ctx context.Context, req dto.LoginRequest) (*entity.User, *TokenPair, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("invalid email or password: %w", apperror.ErrBadRequest)
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, nil, fmt.Errorf("invalid email or password: %w", apperror.ErrBadRequest)
	}

	return s.startSession(ctx, user)
}

func (s *service) SocialAuth(ctx context.Context, req dto.SocialAuthRequest) (*entity.User, *TokenPair, error) {
	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}

		// First social login creates the account with a throwaway password.
		hash, hashErr := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
		if hashErr != nil {
			return nil, nil, hashErr
		}

		user = &entity.User{
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: string(hash),
			Role:         entity.RoleUser,
			IsVerified:   true,
		}
		if req.Avatar != "" {
			user.Avatar = datatypes.NewJSONType(entity.Avatar{URL: req.Avatar})
		}

		if err := s.repo.Create(ctx, user); err != nil {
			return nil, nil, err
		}
	}

	return s.startSession(ctx, user)
}

func (s *service) Logout(ctx context.Context, userID uuid.UUID) error {
	if s.sessions == nil {
		return nil
	}
	return s.sessions.Del(ctx, userID.String())
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*entity.User, *TokenPair, error) {
	token, err := jwt.ParseWithClaims(refreshToken, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.refreshSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, nil, fmt.Errorf("could not refresh access token: %w", apperror.ErrUnauthorized)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, nil, fmt.Errorf("could not refresh access token: %w", apperror.ErrUnauthorized)
	}

	user, err := s.sessionUser(ctx, claims.Subject)
	if err != nil {
		return nil, nil, fmt.Errorf("could not refresh access token: %w", apperror.ErrUnauthorized)
	}

	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

func (s *service) Me(ctx context.Context, userID uuid.UUID) (*entity.User, error) {
	// The session snapshot is the source here, not the database.
	user, err := s.sessionUser(ctx, userID.String())
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	}
	return user, nil
}

func (s *service) UpdateInfo(ctx context.Context, userID uuid.UUID, req dto.UpdateInfoRequest) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	}

	if req.Email != "" && req.Email != user.Email {
		if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
			return nil, fmt.Errorf("email already exists: %w", apperror.ErrBadRequest)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		user.Email = req.Email
	}

	if req.Name != "" {
		user.Name = req.Name
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.writeSession(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *service) UpdatePassword(ctx context.Context, userID uuid.UUID, req dto.UpdatePasswordRequest) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return nil, fmt.Errorf("invalid old password: %w", apperror.ErrBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = string(hash)

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.writeSession(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *service) UpdateAvatar(ctx context.Context, userID uuid.UUID, payload string) (*entity.User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	}

	// Replace, not accumulate: the old asset is destroyed first.
	if old := user.Avatar.Data(); old.PublicID != "" {
		if err := s.imageStorage.Destroy(ctx, old.PublicID); err != nil {
			return nil, fmt.Errorf("%v: %w", err, apperror.ErrUpstream)
		}
	}

	uploaded, err := s.imageStorage.Upload(ctx, payload, avatarFolder)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, apperror.ErrUpstream)
	}
	user.Avatar = datatypes.NewJSONType(entity.Avatar{PublicID: uploaded.PublicID, URL: uploaded.URL})

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	if err := s.writeSession(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *service) GetAllUsers(ctx context.Context) ([]entity.User, error) {
	return s.repo.FindAll(ctx)
}

func (s *service) UpdateRole(ctx context.Context, req dto.UpdateRoleRequest) (*entity.User, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid user id: %w", apperror.ErrBadRequest)
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
	}

	user.Role = req.Role
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

func (s *service) startSession(ctx context.Context, user *entity.User) (*entity.User, *TokenPair, error) {
	pair, err := s.issueTokens(user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.writeSession(ctx, user); err != nil {
		return nil, nil, err
	}

	return user, pair, nil
}

func (s *service) issueTokens(user *entity.User) (*TokenPair, error) {
	now := time.Now()

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}).SignedString([]byte(s.accessSecret))
	if err != nil {
		return nil, err
	}

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTTL)),
		IssuedAt:  jwt.NewNumericDate(now),
	}).SignedString([]byte(s.refreshSecret))
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) writeSession(ctx context.Context, user *entity.User) error {
	if s.sessions == nil {
		return nil
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.sessions.Set(ctx, user.ID.String(), string(payload))
}

func (s *service) sessionUser(ctx context.Context, userID string) (*entity.User, error) {
	if s.sessions == nil {
		return nil, apperror.ErrUnauthorized
	}
	payload, found, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.ErrUnauthorized
	}

	var user entity.User
	if err := json.Unmarshal([]byte(payload), &user); err != nil {
		return nil, err
	}
	return &user, nil
}
