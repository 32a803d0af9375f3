package result

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sudo-enjoy/matching-app-be/consts"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	return c, w
}

func TestFailMapsStatus(t *testing.T) {
	tests := []struct {
		code   int32
		status int
	}{
		{consts.CodeParamError, http.StatusBadRequest},
		{consts.CodeInvalidToken, http.StatusUnauthorized},
		{consts.CodeMatchForbidden, http.StatusForbidden},
		{consts.CodeMatchNotFound, http.StatusNotFound},
		{consts.CodeDuplicatePending, http.StatusConflict},
		{consts.CodeTooManySMS, http.StatusTooManyRequests},
		{consts.CodeInternalError, http.StatusInternalServerError},
		{consts.CodeSMSUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		c, w := newTestContext()
		Fail(c, tt.code)
		assert.Equal(t, tt.status, w.Code, "code %d", tt.code)

		var body ErrorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, consts.GetMessage(tt.code), body.Error)
		assert.Empty(t, body.Details)
	}
}

func TestFailWithErrorDetails(t *testing.T) {
	defer SetExposeDetails(true)

	c, w := newTestContext()
	FailWithError(c, consts.CodeInternalError, errors.New("db down"))
	assert.Contains(t, w.Body.String(), "db down")

	SetExposeDetails(false)
	c, w = newTestContext()
	FailWithError(c, consts.CodeInternalError, errors.New("db down"))
	assert.NotContains(t, w.Body.String(), "db down")
	assert.Contains(t, w.Body.String(), `"error":"Server error"`)
}
