package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"edvora.com/lms/internal/entity"
	"edvora.com/lms/pkg/cache"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type AuthMiddleware struct {
	sessions cache.Store
	secret   string
}

func NewAuthMiddleware(sessions cache.Store) *AuthMiddleware {
	secret := os.Getenv("ACCESS_TOKEN_SECRET")
	if secret == "" {
		secret = "change-me"
	}

	return &AuthMiddleware{
		sessions: sessions,
		secret:   secret,
	}
}

// RequireAuth verifies the access token (cookie or bearer header) and loads
// the user session from the cache. The session snapshot, not the database, is
// the identity attached to the request.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, _ := c.Cookie("access_token")

		if tokenString == "" {
			authHeader := c.GetHeader("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Fallback to query parameter "token" (useful for WebSockets)
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "please login to access this resource"})
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(m.secret), nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid or expired access token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*jwt.RegisteredClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid token claims"})
			c.Abort()
			return
		}

		userID := claims.Subject

		if m.sessions == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "session store unavailable"})
			c.Abort()
			return
		}

		sessionJSON, found, err := m.sessions.Get(c.Request.Context(), userID)
		if err != nil || !found {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "please login to access this resource"})
			c.Abort()
			return
		}

		var user entity.User
		if err := json.Unmarshal([]byte(sessionJSON), &user); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "corrupt session, please login again"})
			c.Abort()
			return
		}

		c.Set("user_id", userID)
		c.Set("user", &user)
		c.Next()
	}
}

// RequireAdmin gates admin-only endpoints. Must run after RequireAuth.
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		val, exists := c.Get("user")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "user not authenticated"})
			c.Abort()
			return
		}

		user, ok := val.(*entity.User)
		if !ok || user.Role != entity.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentUser returns the session user attached by RequireAuth.
func CurrentUser(c *gin.Context) (*entity.User, bool) {
	val, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := val.(*entity.User)
	return user, ok
}
