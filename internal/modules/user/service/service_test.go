package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"edvora.com/lms/internal/entity"
	"edvora.com/lms/internal/modules/user/dto"
	"edvora.com/lms/pkg/apperror"
	"edvora.com/lms/pkg/storage"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type fakeUserRepo struct {
	byID    map[uuid.UUID]*entity.User
	byEmail map[string]*entity.User
}

func newFakeUserRepo(users ...*entity.User) *fakeUserRepo {
	r := &fakeUserRepo{
		byID:    make(map[uuid.UUID]*entity.User),
		byEmail: make(map[string]*entity.User),
	}
	for _, u := range users {
		r.byID[u.ID] = u
		r.byEmail[u.Email] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *entity.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user
	return nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (r *fakeUserRepo) FindAll(_ context.Context) ([]entity.User, error) {
	out := make([]entity.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, *u)
	}
	return out, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *entity.User) error {
	r.byID[user.ID] = user
	r.byEmail[user.Email] = user
	return nil
}

type memStore struct {
	data map[string]string
}

func newMemStore() *memStore { return &memStore{data: make(map[string]string)} }

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.data[key]
	return v, ok, nil
}
func (s *memStore) Set(_ context.Context, key, value string) error {
	s.data[key] = value
	return nil
}
func (s *memStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.data, k)
	}
	return nil
}

type fakeStorage struct {
	uploads  int
	destroys []string
}

func (f *fakeStorage) Upload(_ context.Context, _, folder string) (*storage.UploadedImage, error) {
	f.uploads++
	return &storage.UploadedImage{
		PublicID: fmt.Sprintf("%s/asset-%d", folder, f.uploads),
		URL:      fmt.Sprintf("https://cdn.example.com/%s/asset-%d", folder, f.uploads),
	}, nil
}

func (f *fakeStorage) Destroy(_ context.Context, publicID string) error {
	f.destroys = append(f.destroys, publicID)
	return nil
}

type fakeMailer struct {
	to   []string
	data []any
	err  error
}

func (f *fakeMailer) Send(to, _, _ string, data any) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	f.data = append(f.data, data)
	return nil
}

type userFixture struct {
	svc      *service
	repo     *fakeUserRepo
	sessions *memStore
	storage  *fakeStorage
	mailer   *fakeMailer
}

func newUserFixture(users ...*entity.User) *userFixture {
	f := &userFixture{
		repo:     newFakeUserRepo(users...),
		sessions: newMemStore(),
		storage:  &fakeStorage{},
		mailer:   &fakeMailer{},
	}
	f.svc = &service{
		repo:             f.repo,
		sessions:         f.sessions,
		imageStorage:     f.storage,
		mail:             f.mailer,
		accessSecret:     "test-access",
		refreshSecret:    "test-refresh",
		activationSecret: "test-activation",
		accessTTL:        5 * time.Minute,
		refreshTTL:       7 * 24 * time.Hour,
	}
	return f
}

func verifiedUser(email, password string) *entity.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &entity.User{
		ID:           uuid.New(),
		Name:         "Ada",
		Email:        email,
		PasswordHash: string(hash),
		Role:         entity.RoleUser,
		IsVerified:   true,
	}
}

func TestRegisterIssuesActivationToken(t *testing.T) {
	f := newUserFixture()

	token, err := f.svc.Register(context.Background(), dto.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	var claims activationClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-activation"), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	assert.Equal(t, "ada@example.com", claims.User.Email)
	assert.Len(t, claims.ActivationCode, 4)

	// The code in the mail matches the one in the token.
	require.Len(t, f.mailer.data, 1)
	mailData := f.mailer.data[0].(map[string]any)
	assert.Equal(t, claims.ActivationCode, mailData["ActivationCode"])

	// Nothing persisted until the code is confirmed.
	assert.Empty(t, f.repo.byID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newUserFixture(verifiedUser("ada@example.com", "secret123"))

	_, err := f.svc.Register(context.Background(), dto.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "secret123",
	})

	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestActivateCreatesVerifiedUser(t *testing.T) {
	f := newUserFixture()

	token, err := f.svc.Register(context.Background(), dto.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	code := f.mailer.data[0].(map[string]any)["ActivationCode"].(string)
	require.NoError(t, f.svc.Activate(context.Background(), dto.ActivateRequest{
		ActivationToken: token,
		ActivationCode:  code,
	}))

	user, err := f.repo.FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.Equal(t, entity.RoleUser, user.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("secret123")))
}

func TestActivateWrongCode(t *testing.T) {
	f := newUserFixture()

	token, err := f.svc.Register(context.Background(), dto.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	err = f.svc.Activate(context.Background(), dto.ActivateRequest{
		ActivationToken: token,
		ActivationCode:  "0000",
	})

	// One in nine thousand odds of colliding with the real code.
	if f.mailer.data[0].(map[string]any)["ActivationCode"] == "0000" {
		t.Skip("generated code happened to be 0000")
	}
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
	assert.Empty(t, f.repo.byID)
}

func TestLoginWritesSession(t *testing.T) {
	user := verifiedUser("ada@example.com", "secret123")
	f := newUserFixture(user)

	got, pair, err := f.svc.Login(context.Background(), dto.LoginRequest{
		Email:    "ada@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	_, cached := f.sessions.data[user.ID.String()]
	assert.True(t, cached)
}

func TestLoginWrongPassword(t *testing.T) {
	f := newUserFixture(verifiedUser("ada@example.com", "secret123"))

	_, _, err := f.svc.Login(context.Background(), dto.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong",
	})

	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}

func TestSocialAuthCreatesAccountOnFirstLogin(t *testing.T) {
	f := newUserFixture()

	user, pair, err := f.svc.SocialAuth(context.Background(), dto.SocialAuthRequest{
		Name:   "Ada",
		Email:  "ada@example.com",
		Avatar: "https://avatars.example.com/ada.png",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.True(t, user.IsVerified)
	assert.Equal(t, "https://avatars.example.com/ada.png", user.Avatar.Data().URL)

	// Second login reuses the account.
	again, _, err := f.svc.SocialAuth(context.Background(), dto.SocialAuthRequest{
		Name:  "Ada",
		Email: "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Len(t, f.repo.byID, 1)
}

func TestRefreshRotatesTokens(t *testing.T) {
	user := verifiedUser("ada@example.com", "secret123")
	f := newUserFixture(user)

	_, pair, err := f.svc.Login(context.Background(), dto.LoginRequest{
		Email:    "ada@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	got, fresh, err := f.svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.NotEmpty(t, fresh.AccessToken)
}

func TestRefreshRejectsGarbageToken(t *testing.T) {
	f := newUserFixture()

	_, _, err := f.svc.Refresh(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestLogoutDropsSession(t *testing.T) {
	user := verifiedUser("ada@example.com", "secret123")
	f := newUserFixture(user)

	_, _, err := f.svc.Login(context.Background(), dto.LoginRequest{
		Email:    "ada@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(context.Background(), user.ID))
	_, cached := f.sessions.data[user.ID.String()]
	assert.False(t, cached)

	_, err = f.svc.Me(context.Background(), user.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUpdatePasswordChecksOldPassword(t *testing.T) {
	user := verifiedUser("ada@example.com", "secret123")
	f := newUserFixture(user)

	_, err := f.svc.UpdatePassword(context.Background(), user.ID, dto.UpdatePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "newsecret",
	})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	updated, err := f.svc.UpdatePassword(context.Background(), user.ID, dto.UpdatePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "newsecret",
	})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newsecret")))
}

func TestUpdateAvatarReplacesOldAsset(t *testing.T) {
	user := verifiedUser("ada@example.com", "secret123")
	f := newUserFixture(user)

	first, err := f.svc.UpdateAvatar(context.Background(), user.ID, "data:image/png;base64,one")
	require.NoError(t, err)
	firstID := first.Avatar.Data().PublicID

	second, err := f.svc.UpdateAvatar(context.Background(), user.ID, "data:image/png;base64,two")
	require.NoError(t, err)

	assert.Equal(t, []string{firstID}, f.storage.destroys)
	assert.NotEqual(t, firstID, second.Avatar.Data().PublicID)
}

func TestUpdateRole(t *testing.T) {
	user := verifiedUser("ada@example.com", "secret123")
	f := newUserFixture(user)

	updated, err := f.svc.UpdateRole(context.Background(), dto.UpdateRoleRequest{
		ID:   user.ID.String(),
		Role: entity.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleAdmin, updated.Role)

	_, err = f.svc.UpdateRole(context.Background(), dto.UpdateRoleRequest{ID: "nope", Role: entity.RoleAdmin})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)
}
