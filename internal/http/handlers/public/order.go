package public

import (
	"github.com/eoshub-next/internal/http/response"
	"github.com/eoshub-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateOrderRequest 下单请求
type CreateOrderRequest struct {
	ProductID   uint   `json:"product_id" binding:"required"`
	AccountName string `json:"account_name" binding:"required"`
	PublicKey   string `json:"public_key" binding:"required"`
	PayerID     string `json:"payer_id" binding:"required"`
	PGCode      string `json:"pg_code"`
}

// CreateOrder 下单并发起支付会话
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "request body invalid", err)
		return
	}
	result, err := h.OrderService.CreateOrder(c.Request.Context(), service.CreateOrderInput{
		ProductID:   req.ProductID,
		AccountName: req.AccountName,
		PublicKey:   req.PublicKey,
		PayerID:     req.PayerID,
		PGCode:      req.PGCode,
	})
	if err != nil {
		respondWithMappedError(c, err, createOrderErrorRules, response.CodeInternal, "order create failed")
		return
	}
	requestLog(c).Infow("order_create_succeeded",
		"order_no", result.Order.OrderNo,
		"account_name", result.Order.AccountName,
	)
	response.Success(c, gin.H{
		"order_no":     result.Order.OrderNo,
		"state":        result.Order.State,
		"account_name": result.Order.AccountName,
		"product_name": result.Order.ProductName,
		"amount":       result.Order.Amount,
		"online_url":   result.OnlineURL,
		"mobile_url":   result.MobileURL,
		"token":        result.Token,
	})
}

// OrderStatus 查询订单状态
func (h *Handler) OrderStatus(c *gin.Context) {
	orderNo := c.Param("order_no")
	result, err := h.OrderService.GetOrderStatus(orderNo)
	if err != nil {
		response.NotFound(c, "order not found")
		return
	}
	response.Success(c, result)
}
