package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ordexa/catalog-iam/internal/transport/http/middleware"
	"github.com/ordexa/catalog-iam/internal/usecase"
)

const sessionTokenType = "Bearer"

// AuthHandler exposes authentication endpoints.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterPublicRoutes binds endpoints that do not require a session.
func (h *AuthHandler) RegisterPublicRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	loginHandlers := append([]gin.HandlerFunc{}, loginMiddlewares...)
	r.POST("/login", append(loginHandlers, h.Login)...)
	r.POST("/2fa/verify", append(append([]gin.HandlerFunc{}, loginMiddlewares...), h.VerifyTwoFactor)...)
}

// RegisterProtectedRoutes binds endpoints that require an authenticated session.
func (h *AuthHandler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.POST("/logout", h.Logout)
}

// Login godoc
// @Summary Authenticate a company account
// @Description Verifies credentials and returns a session token or a two-factor challenge.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(c),
	})
	if err != nil {
		h.respondLoginError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

// VerifyTwoFactor godoc
// @Summary Complete a two-factor login challenge
// @Description Validates a TOTP code against a pending challenge and issues the session token.
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body TwoFactorVerifyRequest true "Challenge verification request"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/2fa/verify [post]
func (h *AuthHandler) VerifyTwoFactor(c *gin.Context) {
	var req TwoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid challenge payload"))
		return
	}

	result, err := h.auth.VerifyTwoFactor(c.Request.Context(), req.ChallengeID, req.Code, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorChallengeInvalid, Status: http.StatusUnauthorized, Message: "challenge is invalid"},
			{Err: usecase.ErrTwoFactorChallengeExpired, Status: http.StatusUnauthorized, Message: "challenge has expired"},
			{Err: usecase.ErrTwoFactorCodeInvalid, Status: http.StatusUnauthorized, Message: "two-factor code is invalid"},
			{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account is temporarily locked"},
		}, http.StatusInternalServerError, "failed to verify challenge")
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

// Logout godoc
// @Summary Revoke the current session
// @Description Marks the presented session token revoked in the shared registry.
// @Tags Auth
// @Produce json
// @Success 200 {object} MessageResponse
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := middleware.GetSessionToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), token, requestMeta(c)); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidSessionToken, Status: http.StatusUnauthorized, Message: "invalid session token"},
		}, http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "session revoked"})
}

func (h *AuthHandler) respondLoginError(c *gin.Context, err error) {
	RespondWithMappedError(c, err, []ErrorCase{
		{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
		{Err: usecase.ErrAccountLocked, Status: http.StatusLocked, Message: "account is temporarily locked"},
		{Err: usecase.ErrEmailNotVerified, Status: http.StatusForbidden, Message: "email address is not verified"},
		{Err: usecase.ErrAccountNotApproved, Status: http.StatusForbidden, Message: "account is pending administrator approval"},
		{Err: usecase.ErrAccountRejected, Status: http.StatusForbidden, Message: "account has been rejected"},
	}, http.StatusInternalServerError, "failed to authenticate")
}

func newLoginResponse(result *usecase.LoginResult) LoginResponse {
	if result.TwoFactorRequired {
		challengeExpires := result.ChallengeExpiresAt
		return LoginResponse{
			TwoFactorRequired:  true,
			ChallengeID:        result.ChallengeID,
			ChallengeExpiresAt: &challengeExpires,
		}
	}

	expires := result.ExpiresAt
	return LoginResponse{
		TokenType:    sessionTokenType,
		SessionToken: result.SessionToken,
		ExpiresAt:    &expires,
	}
}
