package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ordexa/catalog-iam/internal/transport/http/middleware"
	"github.com/ordexa/catalog-iam/internal/usecase"
)

// RegistrationHandler exposes endpoints for company registration and email verification.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
	dispatcher   NotificationDispatcher
	isDev        bool
}

func NewRegistrationHandler(registration *usecase.RegistrationService, dispatcher NotificationDispatcher, isDev bool) *RegistrationHandler {
	if dispatcher == nil {
		dispatcher = noopDispatcher{}
	}
	return &RegistrationHandler{
		registration: registration,
		dispatcher:   dispatcher,
		isDev:        isDev,
	}
}

// RegisterRoutes binds registration endpoints.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
	r.POST("/verify-email", h.VerifyEmail)
}

// Register godoc
// @Summary Register a new company account
// @Description Creates a pending company account and issues its email verification token.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body RegistrationRequest true "Registration request"
// @Success 201 {object} RegistrationResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	input := usecase.RegisterAccountInput{
		Email:         req.Email,
		CompanyName:   req.CompanyName,
		CompanyNumber: req.CompanyNumber,
		ContactName:   req.ContactName,
		Password:      req.Password,
		Meta:          requestMeta(c),
	}

	account, issued, err := h.registration.RegisterAccount(c.Request.Context(), input)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEmailAlreadyRegistered, Status: http.StatusConflict, Message: "email already registered"},
			{Err: usecase.ErrCompanyNumberAlreadyRegistered, Status: http.StatusConflict, Message: "company number already registered"},
			{Err: usecase.ErrPasswordPolicyViolation, Status: http.StatusBadRequest, Message: "password does not meet requirements"},
		}, http.StatusInternalServerError, "failed to register account")
		return
	}

	account.PasswordHash = ""

	resp := RegistrationResponse{
		Account: newAccountSummary(account),
		Message: "email verification required",
	}

	if issued != nil {
		expires := issued.ExpiresAt.UTC().Format(time.RFC3339)
		resp.ExpiresAt = &expires

		// Raw tokens leave the API only in development mode. Production
		// delivery goes through the notification dispatcher.
		if h.isDev {
			if token := strings.TrimSpace(issued.Token); token != "" {
				resp.DevToken = &token
			}
		}

		h.dispatchVerification(c.Request.Context(), account.Email, account.CompanyName, issued)
	}

	c.JSON(http.StatusCreated, resp)
}

// VerifyEmail godoc
// @Summary Verify a company account email
// @Description Consumes a verification token and forwards the account to administrator review.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body VerifyEmailRequest true "Verification request"
// @Success 200 {object} VerifyEmailResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/verify-email [post]
func (h *RegistrationHandler) VerifyEmail(c *gin.Context) {
	var req VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid verification payload"))
		return
	}

	account, err := h.registration.VerifyEmail(c.Request.Context(), req.Token, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrVerificationTokenInvalid, Status: http.StatusBadRequest, Message: "verification token is invalid"},
			{Err: usecase.ErrVerificationTokenExpired, Status: http.StatusBadRequest, Message: "verification token has expired"},
		}, http.StatusInternalServerError, "failed to verify email")
		return
	}

	account.PasswordHash = ""

	c.JSON(http.StatusOK, VerifyEmailResponse{
		Message: "email verified, awaiting administrator approval",
		Account: newAccountSummary(account),
	})
}

func (h *RegistrationHandler) dispatchVerification(ctx context.Context, email, companyName string, issued *usecase.IssuedToken) {
	if h.dispatcher == nil || issued == nil {
		return
	}

	payload := VerificationNotification{
		Email:       email,
		CompanyName: companyName,
		Expires:     issued.ExpiresAt,
	}
	if h.isDev {
		payload.DevToken = strings.TrimSpace(issued.Token)
	}

	_ = h.dispatcher.SendVerificationEmail(ctx, payload)
}

// requestMeta extracts transport-level metadata for audit records.
func requestMeta(c *gin.Context) usecase.RequestMeta {
	meta := usecase.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	if reqCtx := middleware.GetRequestContext(c); reqCtx != nil {
		if reqCtx.IP != "" {
			meta.IP = reqCtx.IP
		}
		if reqCtx.UserAgent != "" {
			meta.UserAgent = reqCtx.UserAgent
		}
	}
	return meta
}
