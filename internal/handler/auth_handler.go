package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"life-auth/internal/service"
	"life-auth/internal/util"
)

const maxBodyBytes = 1 << 16

type SendCodeRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,cnmobile"`
}

type VerifyCodeRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,cnmobile"`
	Code        string `json:"code" validate:"required,smscode"`
}

// AuthHandler serves the phone verification endpoints.
type AuthHandler struct {
	responder
	verification *service.VerificationService
	validate     *validator.Validate
}

func NewAuthHandler(verification *service.VerificationService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		responder:    responder{logger: logger},
		verification: verification,
		validate:     newValidator(),
	}
}

func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/send-code", h.SendCode)
		r.Post("/verify-code", h.VerifyCode)
	})
}

// SendCode handles POST /auth/send-code
func (h *AuthHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.verification.RequestCode(r.Context(), req.PhoneNumber)
	if err != nil {
		h.respondWithError(w, err, errorResponse(publicMessage(err)))
		return
	}
	h.respondWithJSON(w, http.StatusOK, res)
}

// VerifyCode handles POST /auth/verify-code
func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var req VerifyCodeRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.verification.Verify(r.Context(), req.PhoneNumber, req.Code)
	if err != nil {
		h.respondWithError(w, err, errorResponse(publicMessage(err)))
		return
	}

	h.respondWithJSON(w, http.StatusOK, res)
	h.logger.Debug("Code verified via HTTP",
		util.String("user_id", res.User.ID),
		util.Duration("duration", time.Since(startTime)))
}

// decodeAndValidate reads a JSON body into dst and runs the struct
// validators. It writes the 400 response itself and returns false on
// failure.
func (h *AuthHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, errorResponse("invalid request body"))
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Message: "validation failed",
			Errors:  fieldErrors(err),
		})
		return false
	}
	return true
}
