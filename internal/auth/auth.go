package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	apperrors "bus_tracker_go_backend/internal/errors"
	"bus_tracker_go_backend/internal/models"
	"bus_tracker_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const identityKey = "identity"

var (
	ErrMissingToken = errors.New("authentication token is required")
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is what a verified token tells us about the caller.
type Identity struct {
	UserID uuid.UUID
	Role   models.Role
}

// TokenVerifier checks HS256 tokens issued by the account service.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses the token and decodes it into an Identity. Tokens must carry
// an expiry, a uuid subject and a known role.
func (v *TokenVerifier) Verify(tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, ok := claims["exp"]; !ok {
		return nil, fmt.Errorf("%w: token has no expiry", ErrInvalidToken)
	}

	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	roleName, _ := claims["role"].(string)
	role := models.Role(roleName)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, roleName)
	}

	return &Identity{UserID: userID, Role: role}, nil
}

func SetupRoutes(r *gin.Engine, verifier *TokenVerifier, userService *services.UserService) {
	auth := r.Group("/auth")
	{
		auth.GET("/user", AuthMiddleware(verifier), getUser(userService))
	}
}

// TokenFromRequest extracts the token from the Authorization header, or from
// the token query parameter on websocket upgrades.
func TokenFromRequest(r *http.Request) (string, error) {
	if websocket.IsWebSocketUpgrade(r) {
		return r.URL.Query().Get("token"), nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("Authorization header is required")
	}
	bearerToken := strings.Split(authHeader, " ")
	if len(bearerToken) != 2 || !strings.EqualFold(bearerToken[0], "Bearer") {
		return "", errors.New("Invalid authorization header")
	}
	return bearerToken[1], nil
}

func AuthMiddleware(verifier *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := zerolog.Ctx(c.Request.Context())

		token, err := TokenFromRequest(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			log.Debug().Err(err).Msg("Token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}
		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}
		apperrors.HandleError(c, apperrors.New403Error())
	}
}

func IdentityFrom(c *gin.Context) (*Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	identity, ok := v.(*Identity)
	return identity, ok
}

func getUser(userService *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			apperrors.HandleError(c, apperrors.New401Error())
			return
		}
		user, err := userService.GetUser(c.Request.Context(), identity.UserID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			apperrors.HandleError(c, apperrors.New404Error("User not found"))
			return
		}
		if err != nil {
			apperrors.HandleError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
