package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"life-auth/internal/mobile/api"
	"life-auth/internal/mobile/config"
)

func newClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *api.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := &config.Config{BaseURL: srv.URL, Timeout: timeout}
	return api.NewClient(cfg, api.WithLogger(zap.NewNop()))
}

func TestSendVerificationCode(t *testing.T) {
	var got map[string]string
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/auth/send-code", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"message":"verification code sent","code":"123456"}`))
	}, time.Second)

	res, err := c.SendVerificationCode(context.Background(), "13800138000")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "123456", res.Code)
	assert.Equal(t, "13800138000", got["phoneNumber"])
}

func TestVerifyCode_Success(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/verify-code", r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"message":"login successful","user":{"id":"user_1","phoneNumber":"13800138000"},"token":"t"}`))
	}, time.Second)

	res, err := c.VerifyCode(context.Background(), "13800138000", "123456")
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.Equal(t, "user_1", res.User.ID)
	assert.Equal(t, "t", res.Token)
}

func TestVerifyCode_Unauthorized(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"message":"verification code is incorrect"}`))
	}, time.Second)

	_, err := c.VerifyCode(context.Background(), "13800138000", "000000")
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "verification code is incorrect", apiErr.Message)
	assert.NotErrorIs(t, err, api.ErrRequestFailed)
}

func TestAPIError_FallbackMessage(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`oops`))
	}, time.Second)

	_, err := c.SendVerificationCode(context.Background(), "13800138000")
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "http error: status 500", apiErr.Message)
}

func TestGetUser(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/user_1", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"user_1","phoneNumber":"13800138000","createdAt":"2025-01-02T03:04:05Z"}`))
	}, time.Second)

	u, err := c.GetUser(context.Background(), "user_1")
	require.NoError(t, err)
	assert.Equal(t, "13800138000", u.PhoneNumber)
	assert.Equal(t, 2025, u.CreatedAt.Year())
}

func TestTimeoutIsApplied(t *testing.T) {
	release := make(chan struct{})
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	start := time.Now()
	_, err := c.SendVerificationCode(context.Background(), "13800138000")
	require.ErrorIs(t, err, api.ErrRequestFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := api.NewClient(&config.Config{BaseURL: url, Timeout: time.Second}, api.WithLogger(zap.NewNop()))
	_, err := c.Health(context.Background())
	assert.ErrorIs(t, err, api.ErrRequestFailed)

	var apiErr *api.APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestInvalidResponse(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}, time.Second)

	_, err := c.Health(context.Background())
	assert.ErrorIs(t, err, api.ErrInvalidResponse)
}
