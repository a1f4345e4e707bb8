package actions

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"time"

	"life-auth/internal/mobile/api"
	"life-auth/internal/util"
)

// DefaultResendCooldown is how long the send button stays disabled after a
// code went out.
const DefaultResendCooldown = 60 * time.Second

var (
	ErrInvalidPhone    = errors.New("invalid phone number")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrMissingInput    = errors.New("phone number and code are required")
	ErrRequestInFlight = errors.New("request already in flight")
	ErrCooldownActive  = errors.New("resend cooldown active")
)

var (
	phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)
	codePattern  = regexp.MustCompile(`^\d{6}$`)
)

// LoginController drives the login screen: it validates input before any
// request goes out, refuses overlapping requests of the same kind and
// holds the resend countdown.
type LoginController struct {
	actions  *Actions
	cooldown *Cooldown

	sending   atomic.Bool
	verifying atomic.Bool
}

func NewLoginController(a *Actions, cooldown *Cooldown) *LoginController {
	if cooldown == nil {
		cooldown = NewCooldown(DefaultResendCooldown)
	}
	return &LoginController{actions: a, cooldown: cooldown}
}

// NormalizePhone strips everything except digits, as the phone field does
// while the user types.
func NormalizePhone(input string) string {
	return util.NormalizeDigits(input)
}

func ValidatePhone(phoneNumber string) error {
	if !phonePattern.MatchString(phoneNumber) {
		return ErrInvalidPhone
	}
	return nil
}

// SendCode requests a code for phoneNumber and starts the resend countdown
// when the server accepts.
func (c *LoginController) SendCode(ctx context.Context, phoneNumber string) (*api.SendCodeResponse, error) {
	phoneNumber = NormalizePhone(phoneNumber)
	if err := ValidatePhone(phoneNumber); err != nil {
		return nil, err
	}
	if c.cooldown.Active() {
		return nil, ErrCooldownActive
	}
	if !c.sending.CompareAndSwap(false, true) {
		return nil, ErrRequestInFlight
	}
	defer c.sending.Store(false)

	res, err := c.actions.SendVerificationCode(ctx, phoneNumber)
	if err != nil {
		return nil, err
	}
	if res.Success {
		c.cooldown.Start()
	}
	return res, nil
}

// Login verifies the code and, on success, leaves the session
// authenticated. A rejected code comes back as an *api.APIError.
func (c *LoginController) Login(ctx context.Context, phoneNumber, code string) (*api.VerifyCodeResponse, error) {
	phoneNumber = NormalizePhone(phoneNumber)
	code = util.NormalizeDigits(code)
	if phoneNumber == "" || code == "" {
		return nil, ErrMissingInput
	}
	if err := ValidatePhone(phoneNumber); err != nil {
		return nil, err
	}
	if !codePattern.MatchString(code) {
		return nil, ErrInvalidCode
	}
	if !c.verifying.CompareAndSwap(false, true) {
		return nil, ErrRequestInFlight
	}
	defer c.verifying.Store(false)

	res, err := c.actions.Login(ctx, phoneNumber, code)
	if err != nil {
		return res, err
	}
	if res.Success && res.Token != "" {
		c.cooldown.Cancel()
	}
	return res, nil
}

func (c *LoginController) Cooldown() *Cooldown {
	return c.cooldown
}

// Close stops the countdown. The controller must not be used afterwards.
func (c *LoginController) Close() {
	c.cooldown.Cancel()
}
