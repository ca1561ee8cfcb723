package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/azabchk/zappppppix/internal/ledger"
	"github.com/azabchk/zappppppix/internal/types"
	"github.com/azabchk/zappppppix/pkg/response"
)

// TokenResponse represents the JWT token response
type TokenResponse struct {
	Token      string    `json:"jwt_token"`
	Expiration time.Time `json:"expiration"`
}

// Claims represents the JWT claims structure
type Claims struct {
	jwt.RegisteredClaims
	UserID string     `json:"user_id"`
	Role   types.Role `json:"role"`
}

// Service handles registration, token issuance and user administration.
type Service struct {
	db        *Database
	gate      *ledger.Gate
	jwtSecret []byte
	logger    zerolog.Logger
}

// NewService creates a new authentication service with the given JWT secret
func NewService(gormDB *gorm.DB, jwtSecret string, gate *ledger.Gate) *Service {
	return &Service{
		db:        NewDatabase(gormDB),
		gate:      gate,
		jwtSecret: []byte(jwtSecret),
		logger:    log.With().Str("service", "auth").Logger(),
	}
}

// Register creates a USER account and hands back its generated api key.
func (s *Service) Register(name string) (*types.User, error) {
	name = strings.TrimSpace(name)
	if len(name) < 3 {
		return nil, fmt.Errorf("%w: name must be at least 3 characters", types.ErrInvalidInput)
	}

	user := &types.User{
		UserID:    uuid.New().String(),
		Name:      name,
		Role:      types.RoleUser,
		APIKey:    "key-" + uuid.New().String(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.CreateUser(user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.UserID).Msg("user registered")
	return user, nil
}

// GenerateToken exchanges an api key for a signed JWT carrying the user's
// id and role, valid for 24 hours.
func (s *Service) GenerateToken(apiKey string) (*TokenResponse, error) {
	user, err := s.db.GetUserByAPIKey(apiKey)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: unknown api key", types.ErrInvalidCredentials)
	}

	expiration := time.Now().Add(24 * time.Hour)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Subject:   user.UserID,
		},
		UserID: user.UserID,
		Role:   user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &TokenResponse{
		Token:      tokenString,
		Expiration: expiration,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims.
// Verifies token signature and expiration.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// DeleteUser removes an account and everything tied to it. The cascade
// runs under the gate so settlement never observes a half-deleted user.
func (s *Service) DeleteUser(userID string) error {
	user, err := s.db.GetUserByID(userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: %s", types.ErrUserNotFound, userID)
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	if err := s.db.DeleteUserCascade(userID); err != nil {
		return err
	}

	s.logger.Info().Str("user_id", userID).Msg("user deleted")
	return nil
}

// RegisterRequest is the body for account registration.
type RegisterRequest struct {
	Name string `json:"name" binding:"required"`
}

// TokenRequest is the body for exchanging an api key for a JWT.
type TokenRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// GinHandlers contains HTTP handlers for authentication endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for authentication endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// RegisterHandler handles POST requests to create a new account
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		user, err := h.service.Register(req.Name)
		response.Handle(c, user, err)
	}
}

// GenerateTokenHandler handles POST requests to exchange an api key for a JWT
func (h *GinHandlers) GenerateTokenHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body")
			return
		}

		token, err := h.service.GenerateToken(req.APIKey)
		if errors.Is(err, types.ErrInvalidCredentials) {
			response.Unauthorized(c, err.Error())
			return
		}
		response.Handle(c, token, err)
	}
}

// DeleteUserHandler handles DELETE requests to remove an account
func (h *GinHandlers) DeleteUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		err := h.service.DeleteUser(c.Param("user_id"))
		response.Handle(c, gin.H{"status": "ok"}, err)
	}
}
