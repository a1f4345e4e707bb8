package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"life-auth/internal/service"
	"life-auth/internal/util"
)

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	responder
	verification *service.VerificationService
}

func NewUserHandler(verification *service.VerificationService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		responder:    responder{logger: logger},
		verification: verification,
	}
}

func (h *UserHandler) RegisterRoutes(router chi.Router) {
	router.Get("/users/{userID}", h.GetUserByID)
}

// GetUserByID handles GET /users/{userID}
func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	user, err := h.verification.GetUser(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err, MessageResponse{Message: publicMessage(err)})
		return
	}

	h.respondWithJSON(w, http.StatusOK, user)
	h.logger.Debug("User retrieved via HTTP", util.String("user_id", userID))
}
