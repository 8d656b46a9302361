package services

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dctmfoo/AIResearchScribe/config"
	"github.com/dctmfoo/AIResearchScribe/models"
	"github.com/dctmfoo/AIResearchScribe/storage"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

var (
	// ErrInvalidCredentials hides whether the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrInvalidToken is returned for malformed, forged or expired session tokens.
	ErrInvalidToken = errors.New("invalid token")

	errNoSigningKey = errors.New("session signing key is empty")

	usernameRE = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)
)

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Claims is the payload of a session token.
type Claims struct {
	UserID   uint   `json:"uid"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService registers users and issues HMAC-signed session tokens.
type AuthService struct {
	Users  UserRepository
	Secret []byte
	TTL    time.Duration

	now func() time.Time
}

// NewAuthService creates the session layer with the configured secret.
func NewAuthService(cfg *config.Config, users UserRepository) *AuthService {
	return &AuthService{
		Users:  users,
		Secret: []byte(cfg.JWTSecret),
		TTL:    cfg.JWTTTL,
		now:    time.Now,
	}
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func CheckPassword(password, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// Register creates an account and returns a session token for it.
// A taken username yields storage.ErrConflict.
func (a *AuthService) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if !usernameRE.MatchString(username) {
		return "", &InvalidInputError{Field: "username", Reason: "must be 3 to 64 letters, digits, '.', '_' or '-'"}
	}
	if len(password) < minPasswordLength {
		return "", &InvalidInputError{Field: "password", Reason: "must be at least 8 characters"}
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	user := &models.User{Username: username, PasswordHash: hashed}
	if err := a.Users.CreateUser(ctx, user); err != nil {
		return "", err
	}
	return a.GenerateToken(user)
}

// Login checks the credentials and returns a fresh session token.
func (a *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := a.Users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return a.GenerateToken(user)
}

// GenerateToken signs a token for user that expires after TTL.
func (a *AuthService) GenerateToken(user *models.User) (string, error) {
	if len(a.Secret) == 0 {
		return "", errNoSigningKey
	}
	now := a.now()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// ParseToken verifies a token, with or without the "Bearer " prefix.
func (a *AuthService) ParseToken(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if len(a.Secret) == 0 {
			return nil, errNoSigningKey
		}
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
