package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"life-auth/internal/models"
	"life-auth/internal/repository"
	"life-auth/internal/sms"
	"life-auth/internal/token"
	"life-auth/internal/util"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUserNotFound   = errors.New("user not found")
	ErrDeliveryFailed = errors.New("failed to deliver verification code")
)

const (
	MessageCodeSent     = "verification code sent"
	MessageLoginSuccess = "login successful"

	ReasonCodeNotFound = "verification code not found or expired"
	ReasonCodeExpired  = "verification code expired"
	ReasonCodeMismatch = "verification code is incorrect"
)

// UnauthorizedError is returned by Verify when the code is rejected. It
// matches ErrUnauthorized and unwraps to the store error.
type UnauthorizedError struct {
	Reason string
	Err    error
}

func (e *UnauthorizedError) Error() string {
	return e.Reason
}

func (e *UnauthorizedError) Unwrap() error {
	return e.Err
}

func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

type SendCodeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	// Code is only filled in development deployments.
	Code string `json:"code,omitempty"`
}

type VerifyResult struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	User    models.UserSummary `json:"user"`
	Token   string             `json:"token"`
}

// VerificationService runs the phone verification flow: issue and deliver
// a code, then redeem it for a user and a token.
type VerificationService struct {
	codes       repository.CodeStore
	users       repository.UserDirectory
	tokens      token.Issuer
	sender      sms.Sender
	exposeCodes bool
	logger      *zap.Logger

	// creating collapses concurrent first logins for one phone into a
	// single Create.
	creating singleflight.Group
}

type Option func(*VerificationService)

// WithExposedCodes echoes issued codes in SendCodeResult.
func WithExposedCodes(expose bool) Option {
	return func(s *VerificationService) { s.exposeCodes = expose }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *VerificationService) { s.logger = l }
}

func NewVerificationService(
	codes repository.CodeStore,
	users repository.UserDirectory,
	tokens token.Issuer,
	sender sms.Sender,
	opts ...Option,
) *VerificationService {
	s := &VerificationService{
		codes:  codes,
		users:  users,
		tokens: tokens,
		sender: sender,
		logger: util.Named("verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestCode issues a code for phoneNumber and hands it to the SMS sender
// before returning.
func (s *VerificationService) RequestCode(ctx context.Context, phoneNumber string) (*SendCodeResult, error) {
	if phoneNumber == "" {
		return nil, fmt.Errorf("%w: phone number is required", ErrInvalidInput)
	}

	code, err := s.codes.Issue(ctx, phoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to issue verification code: %w", err)
	}

	if err := s.sender.Send(ctx, phoneNumber, code); err != nil {
		s.logger.Error("Verification code delivery failed",
			util.Phone("phone_number", phoneNumber),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	s.logger.Info("Verification code issued", util.Phone("phone_number", phoneNumber))

	res := &SendCodeResult{Success: true, Message: MessageCodeSent}
	if s.exposeCodes {
		res.Code = code
	}
	return res, nil
}

// Verify redeems code for phoneNumber. The user is created on first
// successful verification.
func (s *VerificationService) Verify(ctx context.Context, phoneNumber, code string) (*VerifyResult, error) {
	if phoneNumber == "" || code == "" {
		return nil, fmt.Errorf("%w: phone number and code are required", ErrInvalidInput)
	}

	if err := s.codes.Validate(ctx, phoneNumber, code); err != nil {
		reason, ok := rejectionReason(err)
		if !ok {
			return nil, fmt.Errorf("failed to validate verification code: %w", err)
		}
		s.logger.Info("Verification rejected",
			util.Phone("phone_number", phoneNumber),
			zap.String("reason", reason))
		return nil, &UnauthorizedError{Reason: reason, Err: err}
	}

	user, err := s.findOrCreate(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}

	tok, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("User logged in",
		zap.String("user_id", user.ID),
		util.Phone("phone_number", phoneNumber))

	return &VerifyResult{
		Success: true,
		Message: MessageLoginSuccess,
		User:    user.Summary(),
		Token:   tok,
	}, nil
}

func (s *VerificationService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *VerificationService) findOrCreate(ctx context.Context, phoneNumber string) (*models.User, error) {
	v, err, _ := s.creating.Do(phoneNumber, func() (interface{}, error) {
		user, found, err := s.users.FindByPhone(ctx, phoneNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}
		if found {
			return user, nil
		}

		start := time.Now()
		user, err = s.users.Create(ctx, phoneNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		s.logger.Info("New user registered",
			zap.String("user_id", user.ID),
			zap.Duration("duration", time.Since(start)))
		return user, nil
	})
	if err != nil {
		return nil, err
	}

	u := *v.(*models.User)
	return &u, nil
}

func rejectionReason(err error) (string, bool) {
	switch {
	case errors.Is(err, repository.ErrCodeNotFound):
		return ReasonCodeNotFound, true
	case errors.Is(err, repository.ErrCodeExpired):
		return ReasonCodeExpired, true
	case errors.Is(err, repository.ErrCodeMismatch):
		return ReasonCodeMismatch, true
	default:
		return "", false
	}
}
