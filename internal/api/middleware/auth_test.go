package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yajasvikhanna/Flytbase/internal/pkg/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init("error", "console")
	m.Run()
}

func testRouter(signingKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(JWTAuth(signingKey))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id":         GetUserID(c.Request.Context()),
			"organization_id": GetOrganizationID(c.Request.Context()),
		})
	})
	return r
}

func TestJWTAuthValidToken(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	cfg := JWTConfig{SigningKey: key, Issuer: "flytbase", ExpiresIn: time.Hour}
	token, _, err := GenerateToken(cfg, "u-1", "org-1", "operator")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	testRouter(key).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"organization_id":"org-1"`)
	assert.Contains(t, w.Body.String(), `"user_id":"u-1"`)
}

func TestJWTAuthTokenViaQueryParam(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	token, _, err := GenerateToken(JWTConfig{SigningKey: key, ExpiresIn: time.Hour}, "u-1", "org-1", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil)
	w := httptest.NewRecorder()
	testRouter(key).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestJWTAuthRejections(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	expired, _, err := GenerateToken(JWTConfig{SigningKey: key, ExpiresIn: -time.Minute}, "u-1", "org-1", "")
	require.NoError(t, err)
	wrongKey, _, err := GenerateToken(JWTConfig{SigningKey: []byte("another-signing-key-of-32-bytes!"), ExpiresIn: time.Hour}, "u-1", "org-1", "")
	require.NoError(t, err)
	noOrg, _, err := GenerateToken(JWTConfig{SigningKey: key, ExpiresIn: time.Hour}, "u-1", "", "")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", "AUTH_FAILED"},
		{"malformed header", "Token abc", "AUTH_FAILED"},
		{"garbage token", "Bearer not-a-jwt", "TOKEN_INVALID"},
		{"expired token", "Bearer " + expired, "TOKEN_EXPIRED"},
		{"wrong signing key", "Bearer " + wrongKey, "TOKEN_INVALID"},
		{"missing organization claim", "Bearer " + noOrg, "TOKEN_INVALID"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			testRouter(key).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tc.want)
		})
	}
}
