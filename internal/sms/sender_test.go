package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestYunPianSend(t *testing.T) {
	var gotMobile, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotMobile = r.PostFormValue("mobile")
		gotKey = r.PostFormValue("apikey")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":0,"msg":"OK"}`))
	}))
	defer srv.Close()

	y := NewYunPian("test-key")
	y.BaseURL = srv.URL

	require.NoError(t, y.Send(context.Background(), "13800138000", "123456"))
	require.Equal(t, "13800138000", gotMobile)
	require.Equal(t, "test-key", gotKey)
}

func TestYunPianSendRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"code":2,"msg":"apikey invalid"}`))
	}))
	defer srv.Close()

	y := NewYunPian("bad-key")
	y.BaseURL = srv.URL

	err := y.Send(context.Background(), "13800138000", "123456")
	require.ErrorContains(t, err, "apikey invalid")
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 20; i++ {
		require.Regexp(t, `^\d{6}$`, GenerateCode())
	}
}
