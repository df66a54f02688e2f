package handler

import (
	"fmt"
	"net/http"

	"edvora.com/lms/internal/middleware"
	orderDto "edvora.com/lms/internal/modules/order/dto"
	"edvora.com/lms/internal/modules/order/service"
	"edvora.com/lms/pkg/apperror"
	"edvora.com/lms/pkg/response"
	"edvora.com/lms/pkg/validator"
	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	service service.Service
}

func NewOrderHandler(service service.Service) *OrderHandler {
	return &OrderHandler{service: service}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized)
		return
	}

	var req orderDto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, fmt.Errorf("%s: %w", validator.FormatValidationError(err), apperror.ErrInvalidInput))
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), user, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusCreated, gin.H{"order": order})
}

func (h *OrderHandler) GetAllOrders(c *gin.Context) {
	orders, err := h.service.GetAllOrders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, http.StatusOK, gin.H{"orders": orders})
}
