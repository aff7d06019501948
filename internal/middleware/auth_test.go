package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_jwt_secret_32_chars_minimum!"

func signToken(t *testing.T, userID, role string, outlet *string, dur time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": userID, "username": "testuser", "role": role,
		"exp": time.Now().Add(dur).Unix(), "iat": time.Now().Unix(),
	}
	if outlet != nil {
		claims["outlet_id"] = *outlet
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func ginTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuth(testSecret))
	r.GET("/protected", func(c *gin.Context) {
		claims := GetClaims(c)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID, "role": claims.Role})
	})
	r.GET("/admin", RequireRole("admin"), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/outlets/:id", func(c *gin.Context) {
		id, _ := uuid.Parse(c.Param("id"))
		if !CanAccessOutlet(c, id) {
			c.Status(http.StatusForbidden)
			return
		}
		c.String(http.StatusOK, OperatorID(c).String())
	})
	return r
}

func get(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestProtectedEndpoint_NoToken(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, get(ginTestRouter(), "/protected", "").Code)
}

func TestProtectedEndpoint_ValidToken(t *testing.T) {
	tok := signToken(t, uuid.New().String(), "cashier", nil, time.Hour)
	assert.Equal(t, http.StatusOK, get(ginTestRouter(), "/protected", tok).Code)
}

func TestProtectedEndpoint_ExpiredToken(t *testing.T) {
	tok := signToken(t, uuid.New().String(), "cashier", nil, -time.Second)
	assert.Equal(t, http.StatusUnauthorized, get(ginTestRouter(), "/protected", tok).Code)
}

func TestProtectedEndpoint_WrongSecret(t *testing.T) {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uuid.New().String(), "role": "admin",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("another-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(ginTestRouter(), "/protected", s).Code)
}

func TestProtectedEndpoint_NonUUIDSubject(t *testing.T) {
	tok := signToken(t, "not-a-uuid", "admin", nil, time.Hour)
	assert.Equal(t, http.StatusUnauthorized, get(ginTestRouter(), "/protected", tok).Code)
}

func TestRequireRole(t *testing.T) {
	r := ginTestRouter()
	cashier := signToken(t, uuid.New().String(), "cashier", nil, time.Hour)
	admin := signToken(t, uuid.New().String(), "admin", nil, time.Hour)

	assert.Equal(t, http.StatusForbidden, get(r, "/admin", cashier).Code)
	assert.Equal(t, http.StatusOK, get(r, "/admin", admin).Code)
}

func TestCanAccessOutlet(t *testing.T) {
	r := ginTestRouter()
	opID := uuid.New().String()
	mine := uuid.New().String()

	pinned := signToken(t, opID, "cashier", &mine, time.Hour)
	w := get(r, "/outlets/"+mine, pinned)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, opID, w.Body.String())
	assert.Equal(t, http.StatusForbidden, get(r, "/outlets/"+uuid.New().String(), pinned).Code)

	roaming := signToken(t, opID, "supervisor", nil, time.Hour)
	assert.Equal(t, http.StatusOK, get(r, "/outlets/"+uuid.New().String(), roaming).Code)
}
