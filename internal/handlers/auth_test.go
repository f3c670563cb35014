package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/mxshop/backend/internal/models"
	"github.com/mxshop/backend/internal/sms"
)

// memRedis is an in-memory sms.Redis for handler tests; TTLs are ignored
// since these tests never cross an expiry boundary.
type memRedis struct {
	entries map[string]string
}

func newMemRedis() *memRedis { return &memRedis{entries: map[string]string{}} }

func (m *memRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.entries[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.entries[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (m *memRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := m.entries[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.entries[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (m *memRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := m.entries[k]; ok {
			delete(m.entries, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

// stubSender records the last delivered code and can be told to fail.
type stubSender struct {
	code string
	err  error
	sent int
}

func (s *stubSender) Send(_ context.Context, _, code string) error {
	if s.err != nil {
		return s.err
	}
	s.code = code
	s.sent++
	return nil
}

func newAuthEnv(t *testing.T) (*AuthHandler, *stubSender) {
	t.Helper()

	sender := &stubSender{}
	h := &AuthHandler{
		DB:            newTestDB(t),
		JWTSecret:     []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Codes:         &sms.CodeStore{RDB: newMemRedis()},
		Sender:        sender,
	}
	return h, sender
}

func postJSON(t *testing.T, handler echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	err := handler(e.NewContext(req, rec))
	if err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec
}

func TestRegisterWithCode(t *testing.T) {
	h, sender := newAuthEnv(t)

	rec := postJSON(t, h.SendCode, "/api/code", `{"mobile":"13800138000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, sender.sent)
	require.Regexp(t, `^\d{6}$`, sender.code)

	rec = postJSON(t, h.Register, "/api/register",
		`{"mobile":"13800138000","password":"s3cret","code":"`+sender.code+`"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var user models.User
	require.NoError(t, h.DB.Where("mobile = ?", "13800138000").First(&user).Error)
	require.Equal(t, "user", user.Role)
	require.NotEqual(t, "s3cret", user.PasswordHash)

	names := map[string]bool{}
	for _, c := range rec.Result().Cookies() {
		names[c.Name] = true
	}
	require.True(t, names["accessToken"])
	require.True(t, names["refreshToken"])

	// The code was consumed at registration and cannot be reused.
	rec = postJSON(t, h.Register, "/api/register",
		`{"mobile":"13800138000","password":"s3cret","code":"`+sender.code+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterWrongCode(t *testing.T) {
	h, sender := newAuthEnv(t)

	rec := postJSON(t, h.SendCode, "/api/code", `{"mobile":"13800138000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	wrong := "000000"
	if sender.code == wrong {
		wrong = "000001"
	}
	rec = postJSON(t, h.Register, "/api/register",
		`{"mobile":"13800138000","password":"s3cret","code":"`+wrong+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, h.DB.Model(&models.User{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestSendCodeThrottled(t *testing.T) {
	h, _ := newAuthEnv(t)

	rec := postJSON(t, h.SendCode, "/api/code", `{"mobile":"13800138000"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h.SendCode, "/api/code", `{"mobile":"13800138000"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSendCodeFailureReleasesThrottle(t *testing.T) {
	h, sender := newAuthEnv(t)

	sender.err = errors.New("provider down")
	rec := postJSON(t, h.SendCode, "/api/code", `{"mobile":"13800138000"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// Delivery failed, so the retry is not locked out for the throttle
	// window.
	sender.err = nil
	rec = postJSON(t, h.SendCode, "/api/code", `{"mobile":"13800138000"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, sender.sent)
}
