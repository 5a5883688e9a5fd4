// Session identity of Agora, read from the access token the forum issued.
// Session establishment itself belongs to the forum server; Agora only needs
// to know which username the realtime events are addressed to.

package auth

import (
	"Agora/internal/entity"
	"Agora/internal/errors"
	"Agora/pkg/log"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

// ParseSession extracts the session user from token.
// With a secret the HMAC signature is verified, otherwise only the claims are read.
// The username comes from the "username" claim, falling back to "sub".
func ParseSession(logger log.Logger, token, secret string) (entity.Session, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return entity.Session{}, errors.New("session token is missing")
	}

	var parsed *jwt.Token
	var jwterr error
	claims := jwt.MapClaims{}
	if secret != "" {
		parsed, jwterr = jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			// Check the signing method
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method found: %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
	} else {
		parsed, _, jwterr = jwt.NewParser().ParseUnverified(token, claims)
		if jwterr == nil {
			// Unverified parsing skips the time based claims
			jwterr = claims.Valid()
		}
	}
	if jwterr != nil {
		// Error occured during token parsing
		logger.Warn().Err(jwterr).Msg("Couldn't parse the session token")
		return entity.Session{}, errors.New(fmt.Sprintf("invalid session token: %v", jwterr))
	}
	if secret != "" && !parsed.Valid {
		return entity.Session{}, errors.New("invalid session token")
	}

	username, _ := claims["username"].(string)
	if username == "" {
		username, _ = claims["sub"].(string)
	}
	if username == "" {
		return entity.Session{}, errors.New("session token carries no username")
	}
	return entity.Session{Username: username, Token: token}, nil
}

// SessionMiddleware puts the session user into every request's context,
// the same "Username" key the forum's own handlers read.
func SessionMiddleware(session entity.Session) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		gctx.Set("Username", session.Username)
		gctx.Next()
	}
}
