package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/leadflow-api/internal/models"
	"github.com/noah-isme/leadflow-api/pkg/config"
	appErrors "github.com/noah-isme/leadflow-api/pkg/errors"
)

// AuthConfig defines token issuing behaviour. A zero AccessTokenExpiry issues
// tokens without an exp claim.
type AuthConfig struct {
	AccessTokenSecret string
	AccessTokenExpiry time.Duration
	Issuer            string
}

type credential struct {
	user     models.User
	password string
}

// AuthService authenticates against a fixed credential list and issues JWTs.
type AuthService struct {
	users     map[string]credential
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService from configured credentials.
func NewAuthService(creds []config.Credential, validate *validator.Validate, logger *zap.Logger, cfg AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	users := make(map[string]credential, len(creds))
	for _, c := range creds {
		users[c.Username] = credential{
			user:     models.User{Username: c.Username, Role: models.UserRole(c.Role)},
			password: c.Password,
		}
	}
	return &AuthService{users: users, validator: validate, logger: logger, config: cfg, now: time.Now}
}

// Authenticate checks username and password. Every mismatch yields the same error.
func (s *AuthService) Authenticate(username, password string) (*models.User, error) {
	cred, ok := s.users[username]
	if !ok || !passwordMatches(cred.password, password) {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid username or password")
	}
	user := cred.user
	return &user, nil
}

// Login authenticates a user and returns an access token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err)
	}

	user, err := s.Authenticate(req.Username, req.Password)
	if err != nil {
		s.logger.Info("login rejected", zap.String("username", req.Username))
		return nil, err
	}

	token, err := s.generateAccessToken(*user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	s.logger.Info("login succeeded", zap.String("username", user.Username), zap.String("role", string(user.Role)))

	return &models.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.config.AccessTokenExpiry.Seconds()),
		User:        *user,
	}, nil
}

// ValidateToken parses a token and checks that its subject is still a configured user.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	cred, known := s.users[claims.Username]
	if !known || cred.user.Role != claims.Role {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown user")
	}
	return claims, nil
}

// Lookup returns the configured user with the given username.
func (s *AuthService) Lookup(username string) (models.User, bool) {
	cred, ok := s.users[username]
	return cred.user, ok
}

// Counselors lists admin usernames, the valid assignment targets.
func (s *AuthService) Counselors() []string {
	out := make([]string, 0, len(s.users))
	for name, cred := range s.users {
		if cred.user.Role == models.RoleAdmin {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (s *AuthService) generateAccessToken(user models.User) (string, error) {
	issuedAt := s.now().UTC()
	claims := &models.JWTClaims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	if s.config.AccessTokenExpiry > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(s.config.AccessTokenExpiry))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.AccessTokenSecret))
}

// passwordMatches accepts bcrypt hashes or plain values from configuration.
func passwordMatches(stored, given string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
