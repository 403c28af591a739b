package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/justestif/albumrank/internal/db"
)

// DefaultProfileTTL is how long a user's profile is considered fresh after
// it was last written.
const DefaultProfileTTL = 5 * time.Minute

var (
	// ErrMissingSecret is returned when the authenticator has no signing secret.
	ErrMissingSecret = errors.New("missing token signing secret")

	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")

	// ErrInvalidToken is returned for tokens that fail verification.
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Identity is the verified caller of a request.
type Identity struct {
	UserID string
	Name   string
}

// Claims are the JWT claims understood by the server. The subject is the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// AuthConfig configures token verification.
type AuthConfig struct {
	Secret     string
	Issuer     string
	Audience   string
	ProfileTTL time.Duration
}

// Authenticator verifies HS256 bearer tokens and keeps user profiles current.
type Authenticator struct {
	secret   []byte
	issuer   string
	audience string
	parser   *jwt.Parser
	users    db.UserStore
	seen     *cache.Cache
	logger   *zap.Logger
}

// NewAuthenticator creates an Authenticator. Profiles are upserted into users
// at most once per ProfileTTL for each user and name.
func NewAuthenticator(cfg AuthConfig, users db.UserStore, logger *zap.Logger) (*Authenticator, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.ProfileTTL <= 0 {
		cfg.ProfileTTL = DefaultProfileTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Authenticator{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		parser:   jwt.NewParser(opts...),
		users:    users,
		seen:     cache.New(cfg.ProfileTTL, 2*cfg.ProfileTTL),
		logger:   logger.Named("auth"),
	}, nil
}

// Verify parses and validates a raw token.
func (a *Authenticator) Verify(raw string) (*Identity, error) {
	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return &Identity{UserID: claims.Subject, Name: claims.Name}, nil
}

// Issue signs a token for id that expires after ttl.
func (a *Authenticator) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name: id.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if a.audience != "" {
		claims.Audience = jwt.ClaimStrings{a.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Middleware rejects requests without a valid bearer token with 401 and
// stores the identity in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: ErrMissingToken.Error()})
			return
		}

		id, err := a.Verify(raw)
		if err != nil {
			a.logger.Debug("token rejected", zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: ErrInvalidToken.Error()})
			return
		}

		a.touchProfile(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
	})
}

// touchProfile upserts the user's profile unless it was written recently.
// Failures are logged; the request proceeds either way.
func (a *Authenticator) touchProfile(ctx context.Context, id *Identity) {
	if a.users == nil {
		return
	}
	key := id.UserID + "\x00" + id.Name
	if _, found := a.seen.Get(key); found {
		return
	}

	if err := a.users.Upsert(ctx, &db.User{ID: id.UserID, DisplayName: id.Name}); err != nil {
		a.logger.Warn("profile upsert failed", zap.String("user_id", id.UserID), zap.Error(err))
		return
	}
	a.seen.SetDefault(key, struct{}{})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type identityKey struct{}

func withIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by Middleware.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok
}
