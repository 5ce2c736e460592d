package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ordexa/catalog-iam/internal/transport/http/middleware"
	"github.com/ordexa/catalog-iam/internal/usecase"
)

// TwoFactorHandler exposes TOTP enrollment management for authenticated accounts.
type TwoFactorHandler struct {
	twoFactor *usecase.TwoFactorService
}

// NewTwoFactorHandler constructs TwoFactorHandler.
func NewTwoFactorHandler(twoFactor *usecase.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactor: twoFactor}
}

// RegisterRoutes binds enrollment endpoints. The group must carry auth middleware.
func (h *TwoFactorHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/enroll", h.Enroll)
	r.POST("/confirm", h.Confirm)
	r.POST("/disable", h.Disable)
}

// Enroll godoc
// @Summary Begin TOTP enrollment
// @Description Generates a pending TOTP secret and returns it with its otpauth URI.
// @Tags TwoFactor
// @Produce json
// @Success 200 {object} TwoFactorEnrollResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/2fa/enroll [post]
func (h *TwoFactorHandler) Enroll(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	enrollment, err := h.twoFactor.Enroll(c.Request.Context(), accountID, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorAlreadyEnabled, Status: http.StatusConflict, Message: "two-factor authentication is already enabled"},
		}, http.StatusInternalServerError, "failed to start enrollment")
		return
	}

	c.JSON(http.StatusOK, TwoFactorEnrollResponse{
		Secret:     enrollment.Secret,
		OtpauthURI: enrollment.OtpauthURI,
	})
}

// Confirm godoc
// @Summary Confirm TOTP enrollment
// @Description Validates a code from the authenticator and activates two-factor login.
// @Tags TwoFactor
// @Accept json
// @Produce json
// @Param request body TwoFactorConfirmRequest true "Confirmation request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/2fa/confirm [post]
func (h *TwoFactorHandler) Confirm(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid confirmation payload"))
		return
	}

	if err := h.twoFactor.Confirm(c.Request.Context(), accountID, req.Code, requestMeta(c)); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEnrollmentNotPending, Status: http.StatusConflict, Message: "no enrollment is pending"},
			{Err: usecase.ErrTwoFactorCodeInvalid, Status: http.StatusBadRequest, Message: "two-factor code is invalid"},
		}, http.StatusInternalServerError, "failed to confirm enrollment")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "two-factor authentication enabled"})
}

// Disable godoc
// @Summary Disable two-factor authentication
// @Description Removes TOTP protection after re-proving the password and a current code.
// @Tags TwoFactor
// @Accept json
// @Produce json
// @Param request body TwoFactorDisableRequest true "Disable request"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/2fa/disable [post]
func (h *TwoFactorHandler) Disable(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorDisableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid disable payload"))
		return
	}

	if err := h.twoFactor.Disable(c.Request.Context(), accountID, req.Password, req.Code, requestMeta(c)); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorNotEnabled, Status: http.StatusConflict, Message: "two-factor authentication is not enabled"},
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid password"},
			{Err: usecase.ErrTwoFactorCodeInvalid, Status: http.StatusBadRequest, Message: "two-factor code is invalid"},
		}, http.StatusInternalServerError, "failed to disable two-factor authentication")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "two-factor authentication disabled"})
}
