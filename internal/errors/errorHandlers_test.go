package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   ErrorType
		wantCode   string
	}{
		{"Bad request", New400Error("bad input"), http.StatusBadRequest, ErrorTypeBadRequest, ""},
		{"Forbidden", New403Error(), http.StatusForbidden, ErrorTypeForbidden, ""},
		{"Conflict carries code", New409Error(CodeDuplicateRequest, "duplicate", nil), http.StatusConflict, ErrorTypeConflict, CodeDuplicateRequest},
		{"Plain error becomes 500", stderrors.New("db down"), http.StatusInternalServerError, ErrorTypeInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

			HandleError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.True(t, c.IsAborted())

			var body struct {
				Error struct {
					Type    ErrorType `json:"type"`
					Code    string    `json:"code"`
					Message string    `json:"message"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantType, body.Error.Type)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.NotEmpty(t, body.Error.Message)
		})
	}
}

func TestCustomErrorUnwrap(t *testing.T) {
	cause := stderrors.New("unique violation")
	err := New409Error(CodeDuplicateRequest, "duplicate", cause)
	assert.True(t, stderrors.Is(err, cause))
}
