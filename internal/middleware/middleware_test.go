package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/tis/internal/audit"
	"github.com/weiwangfds/tis/internal/auth"
	apperrors "github.com/weiwangfds/tis/internal/errors"
	"github.com/weiwangfds/tis/internal/response"
	"github.com/weiwangfds/tis/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryWriter struct {
	mu     sync.Mutex
	events []audit.Event
}

func (w *memoryWriter) Write(event audit.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, event)
	return nil
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}

func TestLanguage(t *testing.T) {
	router := gin.New()
	router.Use(Language())
	router.GET("/lang", func(c *gin.Context) {
		c.String(http.StatusOK, GetLanguage(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/lang", nil)
	req.Header.Set("Accept-Language", "ar-SA,ar;q=0.9")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "ar", w.Body.String())
	assert.Equal(t, "ar", w.Header().Get("Content-Language"))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/lang", nil))
	assert.Equal(t, "en-US", w.Body.String())
}

func TestHasPrefix(t *testing.T) {
	prefixes := []string{"/swagger", "/health"}
	assert.True(t, hasPrefix("/swagger/index.html", prefixes))
	assert.True(t, hasPrefix("/health", prefixes))
	assert.False(t, hasPrefix("/healthy", prefixes))
	assert.False(t, hasPrefix("/subjects", prefixes))
}

func newAuthRouter(t *testing.T) (*gin.Engine, *auth.TokenManager, *testutil.Fixture) {
	t.Helper()
	fx := testutil.NewFixture(t)
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	authn := NewAuthenticator(fx.DB, tokens, "access_token")

	router := gin.New()
	router.Use(RequestID(), authn.Identify())
	router.GET("/me", authn.Require(), func(c *gin.Context) {
		actor := CurrentActor(c)
		response.Success(c, gin.H{"user_id": actor.User.UserID, "year": actor.ScopeAcademicYearID})
	})
	return router, tokens, fx
}

func decodeCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

func TestRequireWithoutToken(t *testing.T) {
	router, _, _ := newAuthRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int(apperrors.ErrUnauthorized), decodeCode(t, w))
}

func TestRequireWithInvalidToken(t *testing.T) {
	router, _, _ := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, int(apperrors.ErrSessionExpired), decodeCode(t, w))
}

func TestRequireWithCookieAndBearer(t *testing.T) {
	router, tokens, fx := newAuthRouter(t)
	user := fx.CreateUser(t, "editor1", auth.RoleEditor)

	token, _, err := tokens.Issue(user.UserID, fx.Branch.ID, fx.PastYear.ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"user_id":"editor1"`)
	assert.Contains(t, w.Body.String(), `"year":`)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireWithInactiveAccount(t *testing.T) {
	router, tokens, fx := newAuthRouter(t)
	user := fx.CreateUser(t, "gone1", auth.RoleUser)
	require.NoError(t, fx.DB.Model(&user).Update("is_active", false).Error)

	token, _, err := tokens.Issue(user.UserID, 0, 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditRecordsActorAndSkipsHealth(t *testing.T) {
	_, tokens, fx := newAuthRouter(t)
	writer := &memoryWriter{}
	user := fx.CreateUser(t, "admin1", auth.RoleAdministrator)
	token, _, err := tokens.Issue(user.UserID, 0, 0)
	require.NoError(t, err)

	audited := gin.New()
	authn := NewAuthenticator(fx.DB, tokens, "")
	audited.Use(RequestID(), Audit(writer), authn.Identify())
	audited.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	audited.GET("/subjects", func(c *gin.Context) { c.Status(http.StatusOK) })
	audited.GET("/fail", func(c *gin.Context) { response.Error(c, assert.AnError) })
	audited.GET("/denied", func(c *gin.Context) { response.Error(c, apperrors.Forbidden("")) })

	audited.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	req := httptest.NewRequest(http.MethodGet, "/subjects?q=math", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", "test-agent")
	audited.ServeHTTP(httptest.NewRecorder(), req)

	audited.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/denied", nil))
	audited.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	require.Len(t, writer.events, 3)

	event := writer.events[0]
	assert.Equal(t, http.MethodGet, event.Method)
	assert.Equal(t, "/subjects", event.Path)
	assert.Equal(t, "q=math", event.Query)
	assert.Equal(t, http.StatusOK, event.StatusCode)
	assert.Equal(t, "test-agent", event.UserAgent)
	assert.NotEmpty(t, event.RequestID)
	require.NotNil(t, event.ActorUserID)
	assert.Equal(t, "admin1", *event.ActorUserID)
	require.NotNil(t, event.ActorRole)
	assert.Equal(t, auth.RoleAdministrator, *event.ActorRole)
	require.NotNil(t, event.ScopeBranchID)
	assert.Equal(t, fx.Branch.ID, *event.ScopeBranchID)
	assert.Nil(t, event.Error)

	denied := writer.events[1]
	assert.Equal(t, http.StatusForbidden, denied.StatusCode)
	assert.Nil(t, denied.Error)
	assert.Nil(t, denied.ActorUserID)

	failed := writer.events[2]
	assert.Equal(t, http.StatusInternalServerError, failed.StatusCode)
	require.NotNil(t, failed.Error)
	assert.Equal(t, assert.AnError.Error(), *failed.Error)
}

func TestAuditRecordsPanic(t *testing.T) {
	writer := &memoryWriter{}
	router := gin.New()
	router.Use(gin.CustomRecovery(func(c *gin.Context, _ interface{}) {
		c.AbortWithStatus(http.StatusInternalServerError)
	}), Audit(writer))
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	require.Len(t, writer.events, 1)
	assert.Equal(t, http.StatusInternalServerError, writer.events[0].StatusCode)
	require.NotNil(t, writer.events[0].Error)
	assert.Equal(t, "boom", *writer.events[0].Error)
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), RequestLogger(), RequestLogger(&RequestLoggerConfig{Enabled: false}))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
