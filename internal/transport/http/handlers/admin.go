package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ordexa/catalog-iam/internal/core/port"
	"github.com/ordexa/catalog-iam/internal/transport/http/middleware"
	"github.com/ordexa/catalog-iam/internal/usecase"
)

// AdminHandler exposes the administrator approval gate and the audit log.
type AdminHandler struct {
	approval *usecase.ApprovalService
	audit    *usecase.AuditRecorder
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(approval *usecase.ApprovalService, audit *usecase.AuditRecorder) *AdminHandler {
	return &AdminHandler{approval: approval, audit: audit}
}

// RegisterRoutes binds the admin endpoints. The group must carry auth and
// admin-role middleware.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/accounts/pending", h.ListPending)
	r.POST("/accounts/:id/approve", h.Approve)
	r.POST("/accounts/:id/reject", h.Reject)
	r.GET("/security-events", h.ListSecurityEvents)
}

// ListPending godoc
// @Summary List accounts awaiting approval
// @Description Pages through accounts in pending_admin_approval, oldest first.
// @Tags Admin
// @Produce json
// @Success 200 {object} AccountListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/admin/accounts/pending [get]
func (h *AdminHandler) ListPending(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	accounts, err := h.approval.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list pending accounts"))
		return
	}

	summaries := make([]AccountSummary, 0, len(accounts))
	for i := range accounts {
		accounts[i].PasswordHash = ""
		summaries = append(summaries, newAccountSummary(&accounts[i]))
	}

	c.JSON(http.StatusOK, AccountListResponse{
		Accounts: summaries,
		Limit:    limit,
		Offset:   offset,
	})
}

// Approve godoc
// @Summary Approve a pending account
// @Description Activates an account awaiting administrator approval.
// @Tags Admin
// @Produce json
// @Param id path string true "Account ID"
// @Success 200 {object} AccountSummary
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/admin/accounts/{id}/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	adminID, _ := middleware.GetAuthenticatedAccountID(c)

	account, err := h.approval.Approve(c.Request.Context(), c.Param("id"), adminID, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
			{Err: usecase.ErrApprovalConflict, Status: http.StatusConflict, Message: "account is not pending approval"},
		}, http.StatusInternalServerError, "failed to approve account")
		return
	}

	account.PasswordHash = ""
	c.JSON(http.StatusOK, newAccountSummary(account))
}

// Reject godoc
// @Summary Reject a pending account
// @Description Declines an account awaiting administrator approval. The decision is final.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Account ID"
// @Param request body AdminRejectRequest true "Rejection request"
// @Success 200 {object} AccountSummary
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/admin/accounts/{id}/reject [post]
func (h *AdminHandler) Reject(c *gin.Context) {
	var req AdminRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "rejection reason is required"))
		return
	}

	adminID, _ := middleware.GetAuthenticatedAccountID(c)

	account, err := h.approval.Reject(c.Request.Context(), c.Param("id"), adminID, req.Reason, requestMeta(c))
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrAccountNotFound, Status: http.StatusNotFound, Message: "account not found"},
			{Err: usecase.ErrApprovalConflict, Status: http.StatusConflict, Message: "account is not pending approval"},
		}, http.StatusInternalServerError, "failed to reject account")
		return
	}

	account.PasswordHash = ""
	c.JSON(http.StatusOK, newAccountSummary(account))
}

// ListSecurityEvents godoc
// @Summary Read the security audit log
// @Description Pages through security events, newest first, optionally filtered by account or event type.
// @Tags Admin
// @Produce json
// @Success 200 {object} SecurityEventListResponse
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/admin/security-events [get]
func (h *AdminHandler) ListSecurityEvents(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	filter := port.SecurityEventFilter{Limit: limit, Offset: offset}
	if accountID := strings.TrimSpace(c.Query("account_id")); accountID != "" {
		filter.AccountID = &accountID
	}
	if eventType := strings.TrimSpace(c.Query("event_type")); eventType != "" {
		filter.EventType = &eventType
	}

	events, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to list security events"))
		return
	}

	views := make([]SecurityEventView, 0, len(events))
	for _, event := range events {
		views = append(views, SecurityEventView{
			ID:        event.ID,
			AccountID: event.AccountID,
			EventType: event.EventType,
			Outcome:   string(event.Outcome),
			IP:        event.IP,
			UserAgent: event.UserAgent,
			Detail:    event.Detail,
			CreatedAt: event.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, SecurityEventListResponse{
		Events: views,
		Limit:  limit,
		Offset: offset,
	})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
