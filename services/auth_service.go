package services

import (
	"errors"
	"sync"
	"time"

	"ShopChat/config"
	"ShopChat/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserNotFound       = errors.New("user not found")
)

// AuthService issues and checks the access tokens of the devserver's
// configured accounts.
type AuthService struct {
	jwtSecret   []byte
	tokenExpiry time.Duration

	mu    sync.RWMutex
	users map[string]models.User // by username
}

func NewAuthService(users []models.User, cfg *config.AuthConfig) (*AuthService, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("auth.jwt_secret is required")
	}
	expiry := time.Duration(cfg.TokenExpiry) * time.Hour
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	s := &AuthService{
		jwtSecret:   []byte(cfg.JWTSecret),
		tokenExpiry: expiry,
		users:       make(map[string]models.User, len(users)),
	}
	for _, u := range users {
		if err := s.AddUser(u); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddUser registers u. Password must already be a bcrypt hash.
func (s *AuthService) AddUser(u models.User) error {
	if u.ID == "" || u.Username == "" {
		return errors.New("user needs an id and a username")
	}
	if _, err := bcrypt.Cost([]byte(u.Password)); err != nil {
		return errors.New("password of " + u.Username + " is not a bcrypt hash")
	}
	s.mu.Lock()
	s.users[u.Username] = u
	s.mu.Unlock()
	return nil
}

// HashPassword hashes a plain password for AddUser.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Type     string `json:"type"`
	jwt.RegisteredClaims
}

func (s *AuthService) GenerateToken(user *models.User) (*models.AuthResponse, error) {
	now := time.Now()
	claims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		Type:     user.Type,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.tokenExpiry.Seconds()),
		User:        *user,
	}, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID != "" {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

func (s *AuthService) LoginLocal(username, password string) (*models.User, error) {
	s.mu.RLock()
	user, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// FindUser looks an account up by id.
func (s *AuthService) FindUser(id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}
