package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/eoshub-next/internal/constants"
	"github.com/eoshub-next/internal/eos"
	"github.com/eoshub-next/internal/logger"
	"github.com/eoshub-next/internal/models"
	"github.com/eoshub-next/internal/repository"

	"go.uber.org/zap"
)

// 建户流程错误定义
var (
	ErrProvisionOrderMissing     = errors.New("建户订单不存在")
	ErrProvisionOrderNotPaid     = errors.New("建户订单未支付")
	ErrProvisionProductMissing   = errors.New("建户商品配置缺失")
	ErrProvisionDuplicateAccount = errors.New("链上账户名已存在")
	ErrAccountNodeUnreachable    = errors.New("钱包节点不可达")
	ErrAccountNodeRejected       = errors.New("钱包节点拒绝建户")
)

// ProvisionService 链上建户服务
type ProvisionService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	eosClient   *eos.Client
}

// NewProvisionService 创建建户服务
func NewProvisionService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, eosClient *eos.Client) *ProvisionService {
	return &ProvisionService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		eosClient:   eosClient,
	}
}

// ProvisionAccount 为已支付订单开通链上账户。finalAttempt 为真时，
// 节点不可达不再留给重试，而是直接定格为 delivery_failed。
// 账户名已被占用的订单保留在 paid 状态等待人工处理，不算作开通失败。
func (s *ProvisionService) ProvisionAccount(ctx context.Context, orderNo string, finalAttempt bool) error {
	log := logger.SW("order_no", orderNo, "final_attempt", finalAttempt)

	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		log.Errorw("provision_order_fetch_failed", "error", err)
		return err
	}
	if order == nil {
		log.Warnw("provision_order_not_found")
		return ErrProvisionOrderMissing
	}
	if order.State == constants.OrderStateDelivered {
		log.Infow("provision_already_delivered")
		return nil
	}
	if order.State != constants.OrderStatePaid {
		log.Warnw("provision_order_not_paid", "state", order.State)
		return ErrProvisionOrderNotPaid
	}

	exists, err := s.eosClient.AccountExists(ctx, order.AccountName)
	if err != nil {
		log.Warnw("provision_exists_check_unreachable", "error", err)
		return s.handleUnreachable(order, err.Error(), finalAttempt, log)
	}
	if exists {
		log.Warnw("provision_account_duplicate", "account_name", order.AccountName)
		diag := models.JSON{
			"category": constants.DeliveryDiagDuplicateAccount,
			"account":  order.AccountName,
		}
		if err := s.orderRepo.RecordDeliveryDiagnostic(order.OrderNo, diag); err != nil {
			log.Errorw("provision_diagnostic_record_failed", "error", err)
		}
		return ErrProvisionDuplicateAccount
	}

	product, err := s.productRepo.GetByID(order.ProductID)
	if err != nil {
		log.Errorw("provision_product_fetch_failed", "product_id", order.ProductID, "error", err)
		return err
	}
	if product == nil {
		log.Errorw("provision_product_missing", "product_id", order.ProductID)
		diag := models.JSON{
			"category":   constants.DeliveryDiagRejected,
			"error":      "product_not_found",
			"product_id": order.ProductID,
		}
		if _, err := s.orderRepo.MarkDeliveryFailed(order.OrderNo, diag); err != nil {
			log.Errorw("provision_mark_failed_error", "error", err)
		}
		return ErrProvisionProductMissing
	}

	outcome := s.eosClient.CreateAccount(ctx, eos.CreateAccountInput{
		Creator:     product.CreatorAccount,
		AccountName: order.AccountName,
		PublicKey:   order.PublicKey,
		CPU:         product.CPU,
		NET:         product.NET,
		RAM:         product.RAM,
	})
	switch outcome.Status {
	case eos.OutcomeSuccess:
		ok, err := s.orderRepo.MarkDelivered(order.OrderNo)
		if err != nil {
			log.Errorw("provision_mark_delivered_failed", "error", err)
			return err
		}
		if !ok {
			log.Warnw("provision_mark_delivered_noop", "state", order.State)
			return nil
		}
		log.Infow("provision_account_created", "account_name", order.AccountName)
		return nil
	case eos.OutcomeUnreachable:
		log.Warnw("provision_create_unreachable", "detail", outcome.Body)
		return s.handleUnreachable(order, outcome.Body, finalAttempt, log)
	default:
		log.Warnw("provision_create_rejected", "code", outcome.Code, "detail", outcome.Body)
		diag := models.JSON{
			"category": constants.DeliveryDiagRejected,
			"code":     outcome.Code,
			"body":     outcome.Body,
		}
		if _, err := s.orderRepo.MarkDeliveryFailed(order.OrderNo, diag); err != nil {
			log.Errorw("provision_mark_failed_error", "error", err)
			return err
		}
		return ErrAccountNodeRejected
	}
}

// handleUnreachable 节点不可达：非最终尝试返回可重试错误，
// 最终尝试则定格失败并留痕。
func (s *ProvisionService) handleUnreachable(order *models.Order, detail string, finalAttempt bool, log *zap.SugaredLogger) error {
	wrapped := fmt.Errorf("%w: %s", ErrAccountNodeUnreachable, detail)
	if !finalAttempt {
		return wrapped
	}
	diag := models.JSON{
		"category": constants.DeliveryDiagUnreachable,
		"error":    detail,
	}
	if _, err := s.orderRepo.MarkDeliveryFailed(order.OrderNo, diag); err != nil {
		log.Errorw("provision_mark_failed_error", "error", err)
	}
	return wrapped
}

// RecordPanic 任务崩溃留痕：订单仍处于 paid 时定格失败，否则仅记录诊断
func (s *ProvisionService) RecordPanic(orderNo string, reason string) {
	diag := models.JSON{
		"category": constants.DeliveryDiagPanic,
		"error":    reason,
	}
	ok, err := s.orderRepo.MarkDeliveryFailed(orderNo, diag)
	if err != nil {
		logger.Errorw("provision_panic_mark_failed_error", "order_no", orderNo, "error", err)
		return
	}
	if !ok {
		if err := s.orderRepo.RecordDeliveryDiagnostic(orderNo, diag); err != nil {
			logger.Errorw("provision_panic_diagnostic_failed", "order_no", orderNo, "error", err)
		}
	}
}
