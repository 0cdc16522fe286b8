package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/weiwangfds/tis/internal/errors"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "req-1")
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSuccess(t *testing.T) {
	fixed := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
	getCurrentTime = func() time.Time { return fixed }
	defer func() { getCurrentTime = time.Now }()

	c, w := newTestContext()
	SuccessWithMessage(c, "Subject added successfully.", gin.H{"id": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "Subject added successfully.", resp.Message)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, fixed.Unix(), resp.Timestamp)
}

func TestErrorMapsAppError(t *testing.T) {
	c, w := newTestContext()
	Error(c, apperrors.Validation("", "Subject code is required."))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, int(apperrors.ErrValidation), resp.Code)
	assert.Equal(t, []string{"Subject code is required."}, resp.Errors)
	assert.True(t, c.IsAborted())
	assert.Len(t, c.Errors, 1)
}

func TestErrorHidesUnknownErrors(t *testing.T) {
	c, w := newTestContext()
	Error(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "Internal Server Error", resp.Message)
}

func TestAttachment(t *testing.T) {
	c, w := newTestContext()
	Attachment(c, "subjects_template.xlsx", ContentTypeXLSX, []byte("PK"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="subjects_template.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, ContentTypeXLSX, w.Header().Get("Content-Type"))
}
