package public

import (
	"net/http"
	"strings"

	"github.com/eoshub-next/internal/payment/payletter"
	"github.com/eoshub-next/internal/service"

	"github.com/gin-gonic/gin"
)

// PaymentCallback 支付网关异步通知入口。
// 网关只认 200 应答，除存储层失败需要网关重发外一律吸收，
// 不向不可信的回调方暴露校验细节。
func (h *Handler) PaymentCallback(c *gin.Context) {
	orderNo := strings.TrimSpace(c.Param("order_no"))
	requestLog(c).Infow("payment_callback_request",
		"order_no", orderNo,
		"client_ip", c.ClientIP(),
		"content_type", strings.TrimSpace(c.GetHeader("Content-Type")),
	)

	var data payletter.CallbackData
	if err := c.ShouldBindJSON(&data); err != nil {
		requestLog(c).Warnw("payment_callback_body_invalid", "order_no", orderNo, "error", err)
		c.JSON(http.StatusOK, gin.H{"code": 0})
		return
	}

	_, err := h.PaymentService.HandleCallback(orderNo, &data)
	if err != nil && !service.IsCallbackAcknowledgeable(err) {
		// 存储层失败，让网关按自己的节奏重发
		requestLog(c).Errorw("payment_callback_apply_failed", "order_no", orderNo, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": 1})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": 0})
}
