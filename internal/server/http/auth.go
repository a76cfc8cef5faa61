// Package httpserver exposes the pass issuance, entry validation, and
// revocation endpoints over HTTP.
package httpserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/onepass-app/onepass-server/internal/model"
)

const callerKey = "onepass.caller"

// claims are the platform-issued token claims: subject plus a role.
type claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// bearerToken extracts "Authorization: Bearer <JWT>" from the request.
func bearerToken(r *http.Request) (string, error) {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if t := strings.TrimSpace(v[7:]); t != "" {
			return t, nil
		}
	}
	return "", errors.New("no bearer token")
}

// callerFromToken verifies HS256, validates time claims with leeway, and
// maps the role claim onto the closed role set.
func callerFromToken(tok string, signKey []byte) (model.Caller, error) {
	var cl claims
	parsed, err := jwt.ParseWithClaims(tok, &cl, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return signKey, nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || !parsed.Valid {
		return model.Caller{}, errors.New("invalid token")
	}

	if cl.Subject == "" {
		return model.Caller{}, errors.New("missing subject")
	}
	role, ok := model.ParseRole(cl.Role)
	if !ok {
		return model.Caller{}, errors.New("unknown role")
	}
	return model.Caller{UID: cl.Subject, Role: role}, nil
}

// Authenticate attaches the verified caller to the gin context. Requests
// without a valid token proceed unauthenticated; each handler decides
// whether that is fatal, so the error taxonomy stays with the services.
func Authenticate(signKey []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := bearerToken(c.Request)
		if err == nil {
			if caller, err := callerFromToken(tok, signKey); err == nil {
				c.Set(callerKey, caller)
			}
		}
		c.Next()
	}
}

// caller returns the authenticated caller, zero-valued when absent.
func caller(c *gin.Context) model.Caller {
	if v, ok := c.Get(callerKey); ok {
		if cl, ok := v.(model.Caller); ok {
			return cl
		}
	}
	return model.Caller{}
}
