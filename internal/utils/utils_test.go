package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	SetJWTConfig("unit-secret", time.Hour)

	token, err := GenerateJWT(7, "a@example.com", "admin")
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "7", claims.Subject)

	_, err = ValidateJWT(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	SetJWTConfig("rotated-secret", time.Hour)
	_, err = ValidateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTExpired(t *testing.T) {
	SetJWTConfig("unit-secret", time.Nanosecond)
	defer SetJWTConfig("unit-secret", time.Hour)

	token, err := GenerateJWT(1, "a@example.com", "customer")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = ValidateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMaskUsername(t *testing.T) {
	assert.Equal(t, "ne***", MaskUsername("netflix@example.com"))
	assert.Equal(t, "ab***", MaskUsername("ab"))
	assert.Equal(t, "***", MaskUsername(""))
	assert.Equal(t, "日本***", MaskUsername("日本語アカウント"))
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret(16)
	require.NoError(t, err)
	b, err := GenerateSecret(16)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestResponseEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "req-1")
	ErrorWithData(c, http.StatusConflict, "OUT_OF_STOCK", "Out of stock", gin.H{"delivered": false})

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "OUT_OF_STOCK", resp.Error.Code)
	assert.Equal(t, "req-1", resp.Meta.RequestID)
	assert.Equal(t, map[string]interface{}{"delivered": false}, resp.Data)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	SuccessResult(c, "ok", []int{1}, 0, 0, 120)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Meta.Pagination)
	assert.Equal(t, Pagination{Page: 1, Limit: 50, TotalItems: 120, TotalPages: 3}, *resp.Meta.Pagination)
	assert.Len(t, resp.Meta.RequestID, 8)
}
