// Helpers to exercise the Agora relay API in tests.

package test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Format of Request helper ExecuteAPITest() handles
type RequestAPITest struct {
	Method       string            // Method of API request - [GET, POST, DELETE . . .]
	Path         string            // API Path
	Body         any               // Request Body, marshalled to JSON unless it already is a []byte
	WantResponse []int             // Expected Response according to request
	Headers      map[string]string // Request headers
}

// Helper to execute API tests in Agora. The recorder is returned so the body can be inspected.
func ExecuteAPITest(t *testing.T, router *gin.Engine, request RequestAPITest) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch b := request.Body.(type) {
	case nil:
	case []byte:
		body = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	// Setup the test request
	req, reqerr := http.NewRequest(request.Method, request.Path, body)
	require.NoError(t, reqerr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, val := range request.Headers {
		req.Header.Set(key, val)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	// Assert the response
	assert.Contains(t, request.WantResponse, w.Code, "%s %s: %s", request.Method, request.Path, w.Body.String())
	return w
}

// DecodeBody unmarshals the JSON body of w into v.
func DecodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}
