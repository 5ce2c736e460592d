package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ordexa/catalog-iam/internal/usecase"
)

// PasswordHandler exposes the password reset endpoints.
type PasswordHandler struct {
	reset      *usecase.PasswordResetService
	dispatcher NotificationDispatcher
	isDev      bool
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(reset *usecase.PasswordResetService, dispatcher NotificationDispatcher, isDev bool) *PasswordHandler {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	return &PasswordHandler{
		reset:      reset,
		dispatcher: dispatcher,
		isDev:      isDev,
	}
}

// RegisterRoutes binds the reset endpoints.
func (h *PasswordHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/request", h.RequestReset)
	r.POST("/confirm", h.ConfirmReset)
}

// RequestReset godoc
// @Summary Request a password reset
// @Description Issues a reset token for the account. The response is identical whether or not the email exists.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body PasswordResetRequest true "Reset request"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/password-reset/request [post]
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid reset payload"))
		return
	}

	issued, err := h.reset.RequestReset(c.Request.Context(), req.Email, requestMeta(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to process reset request"))
		return
	}

	if issued != nil {
		h.dispatchReset(c.Request.Context(), req.Email, issued)
	}

	// Anti-enumeration: the answer never depends on whether the email exists.
	c.JSON(http.StatusAccepted, MessageResponse{Message: "if the email is registered, a reset link has been sent"})
}

// ConfirmReset godoc
// @Summary Confirm a password reset
// @Description Redeems a single-use reset token and installs the new password.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body PasswordResetConfirmRequest true "Reset confirmation"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/password-reset/confirm [post]
func (h *PasswordHandler) ConfirmReset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid confirmation payload"))
		return
	}

	if err := h.reset.ConfirmReset(c.Request.Context(), req.Token, req.NewPassword, requestMeta(c)); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrResetTokenInvalid, Status: http.StatusBadRequest, Message: "reset token is invalid"},
			{Err: usecase.ErrResetTokenExpired, Status: http.StatusBadRequest, Message: "reset token has expired"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to reset password")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}

func (h *PasswordHandler) dispatchReset(ctx context.Context, email string, issued *usecase.IssuedToken) {
	payload := PasswordResetNotification{
		Email:   strings.TrimSpace(email),
		Expires: issued.ExpiresAt,
	}
	if h.isDev {
		payload.DevToken = strings.TrimSpace(issued.Token)
	}

	_ = h.dispatcher.SendPasswordReset(ctx, payload)
}
