package api

import (
	"alcyxob/motion-coach/internal/domain"
	"alcyxob/motion-coach/internal/policy"
	"alcyxob/motion-coach/internal/service"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Constants for context keys
const (
	ContextUserIDKey   = "userID"
	ContextUserRoleKey = "userRole"
)

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")

		// Expecting "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortWithError(c, http.StatusUnauthorized, "missing token")
			return
		}

		claims := &service.TokenClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			abortWithError(c, http.StatusUnauthorized, "invalid token")
			return
		}

		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil || !claims.Role.Valid() || claims.ExpiresAt == nil {
			abortWithError(c, http.StatusUnauthorized, "invalid token")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Set(ContextUserRoleKey, claims.Role)
		c.Next()
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// RoleMiddleware creates middleware to check if user has the required role(s).
// Must run AFTER AuthMiddleware.
func RoleMiddleware(allowedRoles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := subjectFromContext(c)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "missing token")
			return
		}
		for _, allowed := range allowedRoles {
			if subject.Role == allowed {
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, "insufficient role")
	}
}

// subjectFromContext returns the caller attached by AuthMiddleware.
func subjectFromContext(c *gin.Context) (policy.Subject, bool) {
	idRaw, ok := c.Get(ContextUserIDKey)
	if !ok {
		return policy.Subject{}, false
	}
	userID, ok := idRaw.(primitive.ObjectID)
	if !ok {
		return policy.Subject{}, false
	}
	roleRaw, _ := c.Get(ContextUserRoleKey)
	role, _ := roleRaw.(domain.Role)
	return policy.Subject{UserID: userID, Role: role}, true
}

// mustSubject aborts with 401 when the route was not mounted behind AuthMiddleware.
func mustSubject(c *gin.Context) (policy.Subject, bool) {
	subject, ok := subjectFromContext(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, "missing token")
	}
	return subject, ok
}

// pathObjectID parses an ObjectID path parameter, answering 400 when it is malformed.
func pathObjectID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("invalid %s", name))
		return primitive.NilObjectID, false
	}
	return id, true
}
