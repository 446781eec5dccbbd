package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
)

type AuthConfig struct {
	JWTSecret string
}

// Claims are issued by the external identity provider.
type Claims struct {
	Email             string `json:"email"`
	GivenName         string `json:"given_name"`
	FamilyName        string `json:"family_name"`
	PreferredUsername string `json:"preferred_username"`
	jwt.RegisteredClaims
}

// ParseBearer validates the Authorization header and returns its claims.
func ParseBearer(header string, cfg AuthConfig) (*Claims, error) {
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return nil, errors.New("missing or invalid authorization header")
	}
	tokenStr := strings.TrimSpace(header[len("Bearer "):])

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, errors.New("token carries no email")
	}
	return claims, nil
}

// VerifyToken only checks the token; the principal may not exist yet.
func VerifyToken(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := ParseBearer(c.GetHeader("Authorization"), cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set("claims", claims)
		c.Next()
	}
}

// AuthMiddleware loads the signed-in principal and tags the request context with it.
func AuthMiddleware(dir *services.Directory, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := ParseBearer(c.GetHeader("Authorization"), cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		p, err := dir.FindByEmail(c.Request.Context(), claims.Email)
		if err != nil {
			if services.IsCode(err, services.ErrorUnavailable) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "try again later"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "principal not registered, sign in first"})
			return
		}

		c.Set("claims", claims)
		c.Set("principal", *p)
		c.Request = c.Request.WithContext(services.WithActor(c.Request.Context(), p.ID))
		c.Next()
	}
}

func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		pVal, ok := c.Get("principal")
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		p := pVal.(models.Principal)
		for _, r := range p.Roles {
			if _, ok := allowed[r]; ok {
				c.Next()
				return
			}
		}
		// allow admin to pass any role-gate
		if p.Roles.Has(models.RoleAdmin) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}
