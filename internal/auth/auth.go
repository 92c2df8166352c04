// Package auth protects the admin area with HS256 JWTs carried in an
// HttpOnly cookie or an Authorization bearer header.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"renda-edge/internal/common/errors"
	"renda-edge/internal/common/httputil"
	"renda-edge/internal/common/logging"
	"renda-edge/internal/storage"
)

const (
	CookieName = "renda_admin"
	issuer     = "renda-edge"
	tokenTTL   = 24 * time.Hour
	// MinSecretLength is the shortest accepted signing secret.
	MinSecretLength = 32
)

// Claims are the JWT claims of an admin session.
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserStore is the part of storage.Storage auth needs.
type UserStore interface {
	ValidateAdminUser(ctx context.Context, username, password string) (*storage.AdminUser, error)
	CreateAdminUser(ctx context.Context, username, password string) (*storage.AdminUser, error)
	AdminUserCount(ctx context.Context) (int, error)
}

// RedisInterface is the subset of the Redis client used to revoke tokens.
type RedisInterface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

type Auth struct {
	users  UserStore
	secret []byte
	secure bool
	redis  RedisInterface
	now    func() time.Time
}

type claimsKey struct{}

// New creates the auth service. redis may be nil, in which case logout only
// clears the cookie and tokens stay valid until they expire.
func New(users UserStore, secret string, secureCookie bool, redis RedisInterface) (*Auth, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.ConfigError(fmt.Sprintf("JWT secret must be at least %d characters", MinSecretLength))
	}
	return &Auth{
		users:  users,
		secret: []byte(secret),
		secure: secureCookie,
		redis:  redis,
		now:    time.Now,
	}, nil
}

func (a *Auth) GenerateJWT(userID, username string) (string, error) {
	now := a.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func blacklistKey(token string) string {
	return "jwt:blacklist:" + token
}

// ValidateJWT parses token and checks signature, expiry, issuer and revocation.
func (a *Auth) ValidateJWT(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, errors.AuthError("missing token")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return nil, errors.AuthError("invalid token").WithCause(err)
	}

	if a.redis != nil {
		if v, err := a.redis.Get(ctx, blacklistKey(token)); err == nil && v != "" {
			return nil, errors.AuthError("token has been revoked")
		}
	}
	return claims, nil
}

// Login checks credentials and returns a signed token.
func (a *Auth) Login(ctx context.Context, username, password string) (string, *Claims, error) {
	user, err := a.users.ValidateAdminUser(ctx, username, password)
	if err != nil {
		return "", nil, err
	}
	token, err := a.GenerateJWT(user.ID, user.Username)
	if err != nil {
		return "", nil, errors.InternalError("failed to sign token", err)
	}
	claims, err := a.ValidateJWT(ctx, token)
	if err != nil {
		return "", nil, err
	}
	return token, claims, nil
}

// Logout revokes token until it would have expired.
func (a *Auth) Logout(ctx context.Context, token string) error {
	claims, err := a.ValidateJWT(ctx, token)
	if err != nil {
		return err
	}
	if a.redis == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(a.now())
	if ttl <= 0 {
		return nil
	}
	if err := a.redis.Set(ctx, blacklistKey(token), "1", ttl); err != nil {
		return errors.UnavailableError("failed to revoke token", err)
	}
	return nil
}

// SetCookie stores token in the admin cookie.
func (a *Auth) SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (a *Auth) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// TokenFromRequest reads the bearer header, then the cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// RequireAuth rejects requests without a valid admin token with 401 JSON.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.ValidateJWT(r.Context(), TokenFromRequest(r))
		if err != nil {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "authentication required"})
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

// EnsureAdmin creates the first admin user when none exists. It is a no-op
// when users exist or no credentials are configured.
func (a *Auth) EnsureAdmin(ctx context.Context, username, password string, logger logging.Logger) error {
	n, err := a.users.AdminUserCount(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if username == "" || password == "" {
		logger.Warn("No admin user exists and ADMIN_USERNAME/ADMIN_PASSWORD are not set; admin area is unreachable")
		return nil
	}
	if _, err := a.users.CreateAdminUser(ctx, username, password); err != nil {
		if errors.IsType(err, errors.ErrTypeConflict) {
			return nil
		}
		return err
	}
	logger.Info("Created initial admin user", logging.String("username", username))
	return nil
}
