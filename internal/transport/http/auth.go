package http

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/labomba/deposit-settlement/internal/consts"
	"github.com/labomba/deposit-settlement/internal/utils/config"
	"github.com/labomba/deposit-settlement/internal/utils/logger"
	"github.com/labomba/deposit-settlement/internal/view"
)

var errUnauthorized = errors.New("unauthorized")

// sessionClaims is the subset of the identity provider's access token we read.
type sessionClaims struct {
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
	jwt.RegisteredClaims
}

type authMiddleware struct {
	secret   []byte
	adminIDs []string
	logger   *logger.Logger
}

func newAuthMiddleware(cfg config.AuthConfig, logger *logger.Logger) *authMiddleware {
	return &authMiddleware{
		secret:   []byte(cfg.JWTSecret),
		adminIDs: cfg.AdminUserIDs,
		logger:   logger,
	}
}

// RequireUser accepts any valid session and stores the user id and role on the context.
func (a *authMiddleware) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.parse(c.GetHeader("Authorization"))
		if err != nil {
			a.logger.Warn("[RequireUser] rejected token", map[string]string{
				"path":  c.Request.URL.Path,
				"error": err.Error(),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, view.CreateResponse[any](nil, errUnauthorized, nil, "valid bearer token required"))
			return
		}

		role := consts.RoleUser
		if a.isAdmin(claims) {
			role = consts.RoleAdmin
		}
		c.Set(consts.ContextKeyUserID, claims.Subject)
		c.Set(consts.ContextKeyRole, role)
		c.Next()
	}
}

// RequireAdmin must run after RequireUser.
func (a *authMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(consts.ContextKeyRole) != consts.RoleAdmin {
			a.logger.Warn("[RequireAdmin] forbidden", map[string]string{
				"path":    c.Request.URL.Path,
				"user_id": c.GetString(consts.ContextKeyUserID),
			})
			c.AbortWithStatusJSON(http.StatusForbidden, view.CreateResponse[any](nil, errors.New("forbidden"), nil, "admin access required"))
			return
		}
		c.Next()
	}
}

func (a *authMiddleware) parse(header string) (*sessionClaims, error) {
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(tokenString) == "" {
		return nil, errors.New("missing bearer token")
	}
	if len(a.secret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(err, "parse token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

func (a *authMiddleware) isAdmin(claims *sessionClaims) bool {
	return claims.AppMetadata.Role == consts.RoleAdmin ||
		claims.Role == consts.RoleAdmin ||
		slices.Contains(a.adminIDs, claims.Subject)
}
