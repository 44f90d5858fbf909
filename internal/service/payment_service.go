package service

import (
	"errors"
	"strings"

	"github.com/eoshub-next/internal/config"
	"github.com/eoshub-next/internal/constants"
	"github.com/eoshub-next/internal/logger"
	"github.com/eoshub-next/internal/models"
	"github.com/eoshub-next/internal/payment/payletter"
	"github.com/eoshub-next/internal/queue"
	"github.com/eoshub-next/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PaymentService 支付回调服务
type PaymentService struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	resultRepo  repository.PaymentResultRepository
	queueClient *queue.Client
	payCfg      *config.PayletterConfig
}

// NewPaymentService 创建支付回调服务
func NewPaymentService(db *gorm.DB, orderRepo repository.OrderRepository, resultRepo repository.PaymentResultRepository, queueClient *queue.Client, payCfg *config.PayletterConfig) *PaymentService {
	return &PaymentService{
		db:          db,
		orderRepo:   orderRepo,
		resultRepo:  resultRepo,
		queueClient: queueClient,
		payCfg:      payCfg,
	}
}

// CallbackResult 回调处理结果
type CallbackResult struct {
	Order        *models.Order
	Transitioned bool // 本次回调是否完成 created -> paid 转换
}

// HandleCallback 处理支付网关异步通知。回调不可信，以摘要校验为准；
// 每次回调无论真伪都追加一条 PaymentResult 留痕，订单状态转换只在
// 摘要通过且订单仍处于 created 时发生一次。
func (s *PaymentService) HandleCallback(orderNo string, data *payletter.CallbackData) (*CallbackResult, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" || data == nil {
		return nil, ErrCallbackInvalid
	}
	log := logger.SW(
		"order_no", orderNo,
		"callback_tid", strings.TrimSpace(data.TID),
		"callback_cid", strings.TrimSpace(data.CID),
		"callback_amount", data.GetAmount(),
	)
	log.Infow("payment_callback_received")

	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		log.Errorw("payment_callback_order_fetch_failed", "error", err)
		return nil, ErrCallbackApplyFailed
	}
	if order == nil {
		log.Warnw("payment_callback_order_not_found")
		return nil, ErrOrderNotFound
	}

	if data.OrderNo != "" && strings.TrimSpace(data.OrderNo) != order.OrderNo {
		log.Warnw("payment_callback_order_no_mismatch", "payload_order_no", data.OrderNo)
		s.recordForensic(order, data)
		return nil, ErrCallbackInvalid
	}

	// 网关失败通知可能不携带摘要，无法校验时仅留痕，不作信任依据
	if !data.IsComplete() && strings.TrimSpace(data.Payhash) == "" {
		if err := s.resultRepo.Create(s.buildResultRow(order, data, false)); err != nil {
			log.Errorw("payment_callback_failure_record_failed", "error", err)
			return nil, ErrCallbackApplyFailed
		}
		log.Infow("payment_callback_unsigned_failure_recorded", "code", data.Code, "message", data.Message)
		return &CallbackResult{Order: order, Transitioned: false}, nil
	}

	if err := payletter.VerifyCallback(s.payletterConfig(), data); err != nil {
		log.Warnw("payment_callback_payhash_mismatch")
		s.recordForensic(order, data)
		return nil, ErrCallbackInvalid
	}

	// 失败通知：留痕但不改订单状态
	if !data.IsComplete() {
		result := s.buildResultRow(order, data, true)
		if err := s.resultRepo.Create(result); err != nil {
			log.Errorw("payment_callback_failure_record_failed", "error", err)
			return nil, ErrCallbackApplyFailed
		}
		log.Infow("payment_callback_failure_recorded", "code", data.Code, "message", data.Message)
		return &CallbackResult{Order: order, Transitioned: false}, nil
	}

	// created -> paid 之外的状态不接受支付通知；已终态订单收到
	// 摘要合法的支付回调属于异常重放，留痕报警后拒绝
	if order.State != constants.OrderStateCreated && order.State != constants.OrderStatePaid {
		log.Warnw("payment_callback_state_conflict", "state", order.State)
		s.recordForensic(order, data)
		return nil, ErrCallbackStateConflict
	}

	if data.GetAmount() != order.Amount.IntPart() {
		log.Warnw("payment_callback_amount_mismatch", "order_amount", order.Amount.String())
		s.recordForensic(order, data)
		return nil, ErrCallbackInvalid
	}

	transitioned := false
	err = s.db.Transaction(func(tx *gorm.DB) error {
		row := s.buildResultRow(order, data, true)
		if err := s.resultRepo.WithTx(tx).Create(row); err != nil {
			return err
		}
		ok, err := s.orderRepo.WithTx(tx).MarkPaid(order.OrderNo, s.buildPaidUpdates(data))
		if err != nil {
			return err
		}
		transitioned = ok
		return nil
	})
	if err != nil {
		log.Errorw("payment_callback_apply_failed", "error", err)
		return nil, ErrCallbackApplyFailed
	}

	if transitioned {
		log.Infow("payment_callback_order_paid")
		s.enqueueProvision(order.OrderNo, log)
	} else {
		log.Infow("payment_callback_idempotent_duplicate", "state", order.State)
	}
	return &CallbackResult{Order: order, Transitioned: transitioned}, nil
}

// enqueueProvision 提交后推送建户任务，失败不回滚订单
func (s *PaymentService) enqueueProvision(orderNo string, log *zap.SugaredLogger) {
	if s.queueClient == nil || !s.queueClient.Enabled() {
		log.Warnw("payment_callback_queue_disabled")
		return
	}
	if err := s.queueClient.EnqueueAccountProvision(queue.AccountProvisionPayload{OrderNo: orderNo}); err != nil {
		log.Errorw("payment_callback_enqueue_failed", "error", err)
		return
	}
	log.Infow("payment_callback_provision_enqueued")
}

// recordForensic 留痕未通过校验的回调，verified 恒为 false
func (s *PaymentService) recordForensic(order *models.Order, data *payletter.CallbackData) {
	row := s.buildResultRow(order, data, false)
	if err := s.resultRepo.Create(row); err != nil {
		logger.Errorw("payment_callback_forensic_record_failed",
			"order_no", order.OrderNo,
			"error", err,
		)
	}
}

func (s *PaymentService) buildResultRow(order *models.Order, data *payletter.CallbackData, verified bool) *models.PaymentResult {
	return &models.PaymentResult{
		OrderID:         order.ID,
		PayerID:         strings.TrimSpace(data.UserID),
		CID:             strings.TrimSpace(data.CID),
		TID:             strings.TrimSpace(data.TID),
		PayInfo:         strings.TrimSpace(data.PayInfo),
		TransactionDate: payletter.ParseTransactionDate(data.TransactionDate),
		Payhash:         strings.TrimSpace(data.Payhash),
		Code:            strings.TrimSpace(data.Code),
		Message:         strings.TrimSpace(data.Message),
		Amount:          models.NewMoneyFromInt(data.GetAmount()),
		Verified:        verified,
	}
}

func (s *PaymentService) buildPaidUpdates(data *payletter.CallbackData) map[string]interface{} {
	updates := map[string]interface{}{
		"transaction_id": strings.TrimSpace(data.TID),
		"return_code":    strings.TrimSpace(data.Code),
		"return_message": strings.TrimSpace(data.Message),
	}
	if v := strings.TrimSpace(data.AccountName); v != "" {
		updates["account_name_payer"] = v
	}
	if v := strings.TrimSpace(data.AccountNo); v != "" {
		updates["account_no"] = v
	}
	if v := strings.TrimSpace(data.BankCode); v != "" {
		updates["bank_code"] = v
	}
	if v := strings.TrimSpace(data.BankName); v != "" {
		updates["bank_name"] = v
	}
	if t := payletter.ParseTransactionDate(data.ExpireDate); t != nil {
		updates["expire_date"] = t
	}
	return updates
}

func (s *PaymentService) payletterConfig() *payletter.Config {
	if s.payCfg == nil {
		return &payletter.Config{}
	}
	return &payletter.Config{
		Host:        s.payCfg.Host,
		PayAPIPath:  s.payCfg.PayAPIPath,
		ClientID:    s.payCfg.ClientID,
		APIKey:      s.payCfg.APIKey,
		PayhashKey:  s.payCfg.PayhashKey,
		ReturnURL:   s.payCfg.ReturnURL,
		CallbackURL: s.payCfg.CallbackURL,
		Timeout:     s.payCfg.Timeout(),
	}
}

// IsCallbackAcknowledgeable 判断错误是否仍应答 200 吸收回调。
// 网关会对非 200 反复重发，除存储层失败外一律吸收。
func IsCallbackAcknowledgeable(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, ErrCallbackInvalid) ||
		errors.Is(err, ErrCallbackStateConflict) ||
		errors.Is(err, ErrOrderNotFound)
}
