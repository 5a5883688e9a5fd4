// Session identity tests in Agora.

package auth

import (
	"Agora/pkg/log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "agora-test-secret"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestParseSessionVerified(t *testing.T) {
	token := sign(t, jwt.MapClaims{
		"username": "alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}, secret)

	session, err := ParseSession(log.Nop(), "Bearer "+token, secret)
	require.NoError(t, err)
	assert.Equal(t, "alice", session.Username)
	assert.Equal(t, token, session.Token)
	assert.Equal(t, "user:alice", session.UserRoom())

	_, err = ParseSession(log.Nop(), token, "another-secret")
	assert.Error(t, err)
}

func TestParseSessionUnverifiedFallsBackToSubject(t *testing.T) {
	token := sign(t, jwt.MapClaims{"sub": "bob"}, "unknown-to-agora")
	session, err := ParseSession(log.Nop(), token, "")
	require.NoError(t, err)
	assert.Equal(t, "bob", session.Username)
}

func TestParseSessionRejects(t *testing.T) {
	expired := sign(t, jwt.MapClaims{
		"username": "alice",
		"exp":      time.Now().Add(-time.Hour).Unix(),
	}, secret)
	anonymous := sign(t, jwt.MapClaims{"authorized": true}, secret)

	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not-a-jwt",
		"expired":   expired,
		"anonymous": anonymous,
	} {
		_, err := ParseSession(log.Nop(), token, "")
		assert.Error(t, err, name)
	}
}

func TestSessionMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	session, err := ParseSession(log.Nop(), sign(t, jwt.MapClaims{"username": "carol"}, secret), secret)
	require.NoError(t, err)
	router.Use(SessionMiddleware(session))
	router.GET("/whoami", func(gctx *gin.Context) {
		gctx.String(http.StatusOK, gctx.GetString("Username"))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "carol", w.Body.String())
}
