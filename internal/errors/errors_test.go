package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	t.Run("错误字符串", func(t *testing.T) {
		err := New(ErrSubjectInUse, "in use")
		assert.Equal(t, "[5000] in use", err.Error())
		assert.Equal(t, "[5000] in use: detail", err.WithDetails("detail").Error())
	})

	t.Run("校验错误默认消息", func(t *testing.T) {
		err := Validation("", "Subject code is required.", "Grade must be KG (0) or a whole number from 1 to 12.")
		assert.Equal(t, ErrValidation, err.Code)
		assert.Equal(t, "Subject code is required.", err.Message)
		assert.Len(t, err.Errors, 2)
	})

	t.Run("包装后可解析", func(t *testing.T) {
		cause := stderrors.New("disk full")
		wrapped := fmt.Errorf("save: %w", Internal(ErrDatabaseInsert, cause))

		appErr, ok := GetAppError(wrapped)
		require.True(t, ok)
		assert.Equal(t, ErrDatabaseInsert, appErr.Code)
		assert.Equal(t, "disk full", appErr.Details)
		assert.True(t, stderrors.Is(wrapped, cause))
		assert.True(t, HasCode(wrapped, ErrDatabaseInsert))
		assert.False(t, IsAppError(cause))
	})
}

func TestHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrValidation:         http.StatusBadRequest,
		ErrInvalidCredentials: http.StatusUnauthorized,
		ErrForbidden:          http.StatusForbidden,
		ErrRecordNotFound:     http.StatusNotFound,
		ErrSubjectInUse:       http.StatusConflict,
		ErrDuplicateSection:   http.StatusConflict,
		ErrDatabaseQuery:      http.StatusInternalServerError,
		ErrArchiveFailed:      http.StatusBadGateway,
	}
	for code, status := range cases {
		assert.Equal(t, status, HTTPStatus(code), "code %d", code)
	}
}

func TestGetErrorMessage(t *testing.T) {
	assert.Equal(t, "No active academic year found. Set current year first.", GetErrorMessage(ErrNoActiveYear))
	assert.Equal(t, "Unknown Error", GetErrorMessage(ErrorCode(9999)))
}
