package service

import (
	"github.com/eoshub-next/internal/constants"
	"github.com/eoshub-next/internal/logger"
	"github.com/eoshub-next/internal/models"
)

// OrderStatusResult 订单状态查询结果
type OrderStatusResult struct {
	OrderNo     string       `json:"order_no"`
	Status      string       `json:"status"`
	AccountName string       `json:"account_name"`
	PublicKey   string       `json:"public_key,omitempty"`
	ProductName string       `json:"product_name"`
	Amount      models.Money `json:"amount"`
	Message     string       `json:"message,omitempty"`
}

// 开通失败对外只给统一提示，诊断细节只进日志和 delivery_message
const deliveryFailedMessage = "account provisioning failed, please contact support"

// GetOrderStatus 查询订单当前状态
func (s *OrderService) GetOrderStatus(orderNo string) (*OrderStatusResult, error) {
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		logger.Errorw("order_status_fetch_failed", "order_no", orderNo, "error", err)
		return nil, ErrOrderNotFound
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	result := &OrderStatusResult{
		OrderNo:     order.OrderNo,
		AccountName: order.AccountName,
		ProductName: order.ProductName,
		Amount:      order.Amount,
	}
	switch order.State {
	case constants.OrderStateCreated:
		result.Status = constants.StatusPendingPayment
	case constants.OrderStatePaid:
		result.Status = constants.StatusProvisioning
	case constants.OrderStateDelivered:
		result.Status = constants.StatusDelivered
		result.PublicKey = order.PublicKey
	case constants.OrderStateDeliveryFailed:
		result.Status = constants.StatusDeliveryFailed
		result.Message = deliveryFailedMessage
	default:
		logger.Warnw("order_status_unknown_state", "order_no", order.OrderNo, "state", order.State)
		result.Status = order.State
	}
	return result, nil
}
