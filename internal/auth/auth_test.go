package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"renda-edge/internal/auth"
	"renda-edge/internal/common/errors"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/storage"
)

const testSecret = "test-secret-key-that-is-long-enough"

type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) ValidateAdminUser(ctx context.Context, username, password string) (*storage.AdminUser, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AdminUser), args.Error(1)
}

func (m *MockUserStore) CreateAdminUser(ctx context.Context, username, password string) (*storage.AdminUser, error) {
	args := m.Called(ctx, username, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AdminUser), args.Error(1)
}

func (m *MockUserStore) AdminUserCount(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func TestNew(t *testing.T) {
	_, err := auth.New(nil, "short", false, nil)
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))

	a, err := auth.New(nil, testSecret, false, nil)
	require.NoError(t, err)
	assert.NotNil(t, a)
}

func TestValidateJWT(t *testing.T) {
	mockRedis := new(MockRedisClient)
	a, _ := auth.New(nil, testSecret, false, mockRedis)

	validToken, err := a.GenerateJWT("user-1", "admin")
	require.NoError(t, err)

	wrong, _ := auth.New(nil, "different-secret-key-that-is-wrong!!", false, nil)
	wrongSecretToken, _ := wrong.GenerateJWT("user-1", "admin")

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID:   "user-1",
		Username: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			Issuer:    "renda-edge",
		},
	})
	expiredToken, _ := expired.SignedString([]byte(testSecret))

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
		},
	})
	foreignToken, _ := foreign.SignedString([]byte(testSecret))

	tests := []struct {
		name          string
		token         string
		blacklisted   bool
		expectedError bool
		errorContains string
	}{
		{name: "valid token", token: validToken},
		{name: "blacklisted token", token: validToken, blacklisted: true, expectedError: true, errorContains: "token has been revoked"},
		{name: "invalid token", token: "invalid.token.here", expectedError: true},
		{name: "wrong secret", token: wrongSecretToken, expectedError: true},
		{name: "expired token", token: expiredToken, expectedError: true},
		{name: "wrong issuer", token: foreignToken, expectedError: true},
		{name: "empty token", token: "", expectedError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRedis.ExpectedCalls = nil
			key := fmt.Sprintf("jwt:blacklist:%s", tt.token)
			if tt.blacklisted {
				mockRedis.On("Get", mock.Anything, key).Return("1", nil).Once()
			} else {
				mockRedis.On("Get", mock.Anything, key).Return("", fmt.Errorf("not found")).Maybe()
			}

			claims, err := a.ValidateJWT(context.Background(), tt.token)
			if tt.expectedError {
				assert.Error(t, err)
				assert.Nil(t, claims)
				assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", claims.UserID)
			assert.Equal(t, "admin", claims.Username)
		})
	}
}

func TestLogin(t *testing.T) {
	users := new(MockUserStore)
	a, _ := auth.New(users, testSecret, false, nil)
	ctx := context.Background()

	users.On("ValidateAdminUser", ctx, "admin", "right").Return(&storage.AdminUser{ID: "u1", Username: "admin"}, nil)
	users.On("ValidateAdminUser", ctx, "admin", "wrong").Return(nil, errors.AuthError("invalid credentials"))

	token, claims, err := a.Login(ctx, "admin", "right")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "u1", claims.UserID)

	_, _, err = a.Login(ctx, "admin", "wrong")
	assert.True(t, errors.IsType(err, errors.ErrTypeAuth))
	users.AssertExpectations(t)
}

func TestLogout(t *testing.T) {
	mockRedis := new(MockRedisClient)
	a, _ := auth.New(nil, testSecret, false, mockRedis)
	ctx := context.Background()
	token, _ := a.GenerateJWT("u1", "admin")
	key := "jwt:blacklist:" + token

	t.Run("revokes the token", func(t *testing.T) {
		mockRedis.ExpectedCalls = nil
		mockRedis.On("Get", mock.Anything, key).Return("", fmt.Errorf("not found")).Once()
		mockRedis.On("Set", mock.Anything, key, "1", mock.AnythingOfType("time.Duration")).Return(nil).Once()

		assert.NoError(t, a.Logout(ctx, token))
		mockRedis.AssertExpectations(t)
	})

	t.Run("redis error", func(t *testing.T) {
		mockRedis.ExpectedCalls = nil
		mockRedis.On("Get", mock.Anything, key).Return("", fmt.Errorf("not found")).Once()
		mockRedis.On("Set", mock.Anything, key, "1", mock.AnythingOfType("time.Duration")).Return(fmt.Errorf("redis connection error")).Once()

		err := a.Logout(ctx, token)
		assert.True(t, errors.IsType(err, errors.ErrTypeUnavailable))
	})

	t.Run("invalid token", func(t *testing.T) {
		assert.Error(t, a.Logout(ctx, "invalid.token"))
	})

	t.Run("no redis", func(t *testing.T) {
		plain, _ := auth.New(nil, testSecret, false, nil)
		tok, _ := plain.GenerateJWT("u1", "admin")
		assert.NoError(t, plain.Logout(ctx, tok))
	})
}

func TestRequireAuth(t *testing.T) {
	a, _ := auth.New(nil, testSecret, false, nil)
	token, _ := a.GenerateJWT("u1", "admin")

	var gotClaims *auth.Claims
	h := a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = auth.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name    string
		setup   func(r *http.Request)
		status  int
		userSet bool
	}{
		{name: "no credentials", setup: func(*http.Request) {}, status: http.StatusUnauthorized},
		{name: "bearer header", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, status: http.StatusOK, userSet: true},
		{name: "cookie", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token}) }, status: http.StatusOK, userSet: true},
		{name: "garbage cookie", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "x"}) }, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotClaims = nil
			req := httptest.NewRequest(http.MethodGet, "/api/admin/analytics", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.userSet {
				require.NotNil(t, gotClaims)
				assert.Equal(t, "admin", gotClaims.Username)
			} else {
				assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
			}
		})
	}
}

func TestCookies(t *testing.T) {
	a, _ := auth.New(nil, testSecret, true, nil)

	rec := httptest.NewRecorder()
	a.SetCookie(rec, "tok")
	c := rec.Result().Cookies()[0]
	assert.Equal(t, auth.CookieName, c.Name)
	assert.Equal(t, "tok", c.Value)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)

	rec = httptest.NewRecorder()
	a.ClearCookie(rec)
	assert.Equal(t, -1, rec.Result().Cookies()[0].MaxAge)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	logger := logging.GetGlobalLogger()

	t.Run("creates first admin", func(t *testing.T) {
		users := new(MockUserStore)
		users.On("AdminUserCount", ctx).Return(0, nil)
		users.On("CreateAdminUser", ctx, "admin", "pw").Return(&storage.AdminUser{ID: "u1"}, nil)
		a, _ := auth.New(users, testSecret, false, nil)

		assert.NoError(t, a.EnsureAdmin(ctx, "admin", "pw", logger))
		users.AssertExpectations(t)
	})

	t.Run("skips when users exist", func(t *testing.T) {
		users := new(MockUserStore)
		users.On("AdminUserCount", ctx).Return(1, nil)
		a, _ := auth.New(users, testSecret, false, nil)

		assert.NoError(t, a.EnsureAdmin(ctx, "admin", "pw", logger))
		users.AssertNotCalled(t, "CreateAdminUser", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("skips without credentials", func(t *testing.T) {
		users := new(MockUserStore)
		users.On("AdminUserCount", ctx).Return(0, nil)
		a, _ := auth.New(users, testSecret, false, nil)

		assert.NoError(t, a.EnsureAdmin(ctx, "", "", logger))
		users.AssertNotCalled(t, "CreateAdminUser", mock.Anything, mock.Anything, mock.Anything)
	})
}
