package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/lumira/lumira-backend/internal/logger"
	"github.com/lumira/lumira-backend/internal/services"
	"github.com/lumira/lumira-backend/internal/types"
)

type UserHandler struct {
	log         *logger.Logger
	userService services.UserService
}

func NewUserHandler(log *logger.Logger, userService services.UserService) *UserHandler {
	return &UserHandler{
		log:         log.With("handler", "UserHandler"),
		userService: userService,
	}
}

func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_id", err)
		return 0, false
	}
	return uint(parsed), true
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if err != nil {
		pageSize = 10
	}
	return page, pageSize
}

type registerUserRequest struct {
	ExternalID int64  `json:"external_id" binding:"required"`
	Username   string `json:"username"`
	ChatID     int64  `json:"chat_id" binding:"required"`
}

func (h *UserHandler) Register(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.ExternalID, req.Username, req.ChatID)
	if err != nil {
		h.log.Error("Register failed", "error", err, "external_id", req.ExternalID)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, user)
}

func (h *UserHandler) GetByExternalID(c *gin.Context) {
	raw := c.Param("external_id")
	externalID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_id", err)
		return
	}

	user, err := h.userService.GetByExternalID(c.Request.Context(), externalID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, user)
}

type balanceRequest struct {
	Action types.BalanceAction `json:"action" binding:"required"`
	Count  int                 `json:"count" binding:"required"`
}

func (h *UserHandler) ChangeBalance(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req balanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}

	balance, err := h.userService.ChangeBalance(c.Request.Context(), userID, req.Action, req.Count)
	if err != nil {
		h.log.Error("ChangeBalance failed", "error", err, "user_id", userID, "action", req.Action)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, balance)
}

type invoiceRequest struct {
	Credits     int            `json:"credits" binding:"required"`
	PaymentInfo datatypes.JSON `json:"payment_info"`
}

func (h *UserHandler) RecordInvoice(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}

	invoice, err := h.userService.RecordInvoice(c.Request.Context(), userID, req.Credits, req.PaymentInfo)
	if err != nil {
		h.log.Error("RecordInvoice failed", "error", err, "user_id", userID)
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, invoice)
}

type promoRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *UserHandler) RedeemPromoCode(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req promoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_body", err)
		return
	}

	balance, err := h.userService.RedeemPromoCode(c.Request.Context(), userID, req.Code)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	RespondOK(c, balance)
}
