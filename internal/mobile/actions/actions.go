// Package actions ties the remote API to the session store: each action
// is one user-level step such as logging in.
package actions

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"life-auth/internal/mobile/api"
	"life-auth/internal/mobile/session"
	"life-auth/internal/util"
)

// RemoteClient is the part of api.Client the actions use.
type RemoteClient interface {
	SendVerificationCode(ctx context.Context, phoneNumber string) (*api.SendCodeResponse, error)
	VerifyCode(ctx context.Context, phoneNumber, code string) (*api.VerifyCodeResponse, error)
}

type Actions struct {
	remote RemoteClient
	store  *session.Store
	logger *zap.Logger
}

func New(remote RemoteClient, store *session.Store, logger *zap.Logger) *Actions {
	if logger == nil {
		logger = util.Named("actions")
	}
	return &Actions{remote: remote, store: store, logger: logger}
}

func (a *Actions) SendVerificationCode(ctx context.Context, phoneNumber string) (*api.SendCodeResponse, error) {
	return a.remote.SendVerificationCode(ctx, phoneNumber)
}

// Login verifies the code and, when the server hands back both a user and
// a token, commits them to the store. Any other response is returned as
// is with the store untouched.
func (a *Actions) Login(ctx context.Context, phoneNumber, code string) (*api.VerifyCodeResponse, error) {
	_ = a.store.SetLoading(true)
	defer func() { _ = a.store.SetLoading(false) }()

	res, err := a.remote.VerifyCode(ctx, phoneNumber, code)
	if err != nil {
		return nil, err
	}

	if res.Success && res.User != nil && res.Token != "" {
		user := session.User{ID: res.User.ID, PhoneNumber: res.User.PhoneNumber}
		if err := a.store.Login(ctx, user, res.Token); err != nil {
			return res, err
		}
		a.logger.Info("Logged in", zap.String("user_id", user.ID))
	}
	return res, nil
}

// Logout clears the local session. There is no server-side logout.
func (a *Actions) Logout(ctx context.Context) error {
	_ = a.store.SetLoading(true)
	defer func() { _ = a.store.SetLoading(false) }()

	return a.store.Logout(ctx)
}

// RestoreSession rehydrates the store and reports whether a token came
// back. A failed read counts as no session.
func (a *Actions) RestoreSession(ctx context.Context) bool {
	if err := a.store.Hydrate(ctx); err != nil {
		a.logger.Warn("Session restore failed", zap.Error(err))
	}
	return a.store.RestoreSession()
}

func (a *Actions) CurrentUser() *session.User {
	return a.store.Snapshot().User
}

func (a *Actions) IsAuthenticated() bool {
	return a.store.Snapshot().IsAuthenticated
}

// Token returns the current token, empty when logged out.
func (a *Actions) Token() string {
	return a.store.Snapshot().Token
}

const (
	MessageRequestFailed  = "request failed, please check your network connection"
	MessageInvalidPhone   = "please enter a valid phone number"
	MessageMissingInput   = "please enter your phone number and verification code"
	MessageInvalidCode    = "please enter the 6-digit verification code"
	MessageInFlight       = "a request is already in progress"
	MessageCooldownActive = "please wait before requesting another code"
	MessageLoginFailed    = "login failed"
)

// FailureMessage turns an action error into text for the user. Rejections
// by the server carry the server's message; transport failures get a
// generic network message.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *api.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return MessageLoginFailed
	case errors.Is(err, api.ErrRequestFailed), errors.Is(err, api.ErrInvalidResponse):
		return MessageRequestFailed
	case errors.Is(err, ErrInvalidPhone):
		return MessageInvalidPhone
	case errors.Is(err, ErrMissingInput):
		return MessageMissingInput
	case errors.Is(err, ErrInvalidCode):
		return MessageInvalidCode
	case errors.Is(err, ErrRequestInFlight):
		return MessageInFlight
	case errors.Is(err, ErrCooldownActive):
		return MessageCooldownActive
	default:
		return err.Error()
	}
}

// IsUnauthorized reports whether err is the server rejecting the code.
func IsUnauthorized(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 401
}
