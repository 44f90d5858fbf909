package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"

	"github.com/eoshub-next/internal/config"
	"github.com/eoshub-next/internal/constants"
	"github.com/eoshub-next/internal/eos"
	"github.com/eoshub-next/internal/logger"
	"github.com/eoshub-next/internal/models"
	"github.com/eoshub-next/internal/payment/payletter"
	"github.com/eoshub-next/internal/repository"

	"gorm.io/gorm"
)

const (
	orderNoDigits      = 8
	orderNoMaxAttempts = 10
)

var (
	accountNamePattern = regexp.MustCompile(`^[a-z1-5]{12}$`)
	publicKeyPattern   = regexp.MustCompile(`^EOS[1-9A-HJ-NP-Za-km-z]{50}$`)
)

// OrderService 订单服务
type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	eosClient   *eos.Client
	payCfg      *config.PayletterConfig
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, eosClient *eos.Client, payCfg *config.PayletterConfig) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		eosClient:   eosClient,
		payCfg:      payCfg,
	}
}

// CreateOrderInput 创建订单输入
type CreateOrderInput struct {
	ProductID   uint
	AccountName string
	PublicKey   string
	PayerID     string
	PGCode      string
}

// CreateOrderResult 创建订单结果（含支付会话）
type CreateOrderResult struct {
	Order     *models.Order `json:"order"`
	OnlineURL string        `json:"online_url"`
	MobileURL string        `json:"mobile_url"`
	Token     string        `json:"token"`
}

// CreateOrder 下单并向支付网关发起支付会话。
// 网关超时或不可达时订单保留在 created 状态，可另行补发支付。
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	accountName := strings.TrimSpace(strings.ToLower(input.AccountName))
	publicKey := strings.TrimSpace(input.PublicKey)
	payerID := strings.TrimSpace(input.PayerID)
	if !accountNamePattern.MatchString(accountName) {
		return nil, ErrAccountNameInvalid
	}
	if !publicKeyPattern.MatchString(publicKey) {
		return nil, ErrPublicKeyInvalid
	}
	if payerID == "" {
		return nil, ErrOrderInvalid
	}
	pgCode := strings.TrimSpace(input.PGCode)
	if pgCode == "" {
		pgCode = constants.PGCodeVirtualAccount
	}

	taken, err := s.orderRepo.ExistsByAccountName(accountName)
	if err != nil {
		logger.Errorw("order_create_account_check_failed", "account_name", accountName, "error", err)
		return nil, ErrOrderCreateFailed
	}
	if taken {
		return nil, ErrDuplicateAccount
	}

	// 账户名在链上已存在时拒绝下单，避免收款后无法开通
	if s.eosClient != nil {
		onChain, err := s.eosClient.AccountExists(ctx, accountName)
		if err != nil {
			logger.Warnw("order_create_node_check_failed", "account_name", accountName, "error", err)
			return nil, ErrAccountNodeUnreachable
		}
		if onChain {
			logger.Infow("order_create_account_on_chain", "account_name", accountName)
			return nil, ErrDuplicateAccount
		}
	}

	product, err := s.productRepo.GetByID(input.ProductID)
	if err != nil {
		logger.Errorw("order_create_product_fetch_failed", "product_id", input.ProductID, "error", err)
		return nil, ErrOrderCreateFailed
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if !product.IsActive {
		return nil, ErrProductDeactivated
	}

	orderNo, err := s.generateOrderNo()
	if err != nil {
		logger.Errorw("order_create_order_no_failed", "error", err)
		return nil, ErrOrderNoExhausted
	}

	order := &models.Order{
		OrderNo:     orderNo,
		ProductID:   product.ID,
		AccountName: accountName,
		PublicKey:   publicKey,
		PGCode:      pgCode,
		Amount:      product.Price,
		ProductName: product.Name,
		State:       constants.OrderStateCreated,
	}
	if err := s.orderRepo.Create(order); err != nil {
		// 并发下单同名账户时预检可能双双通过，唯一索引兜底
		if isDuplicateKeyErr(err) {
			logger.Warnw("order_create_account_race_lost", "order_no", orderNo, "account_name", accountName)
			return nil, ErrDuplicateAccount
		}
		logger.Errorw("order_create_persist_failed", "order_no", orderNo, "error", err)
		return nil, ErrOrderCreateFailed
	}
	logger.Infow("order_created",
		"order_no", order.OrderNo,
		"account_name", order.AccountName,
		"product_id", product.ID,
		"amount", order.Amount.String(),
	)

	session, err := s.requestPaymentSession(ctx, order, payerID)
	if err != nil {
		return nil, err
	}
	return &CreateOrderResult{
		Order:     order,
		OnlineURL: session.OnlineURL,
		MobileURL: session.MobileURL,
		Token:     session.Token,
	}, nil
}

func (s *OrderService) requestPaymentSession(ctx context.Context, order *models.Order, payerID string) (*payletter.CreateResult, error) {
	cfg := s.payletterConfig()
	result, err := payletter.CreatePayment(ctx, cfg, payletter.CreateInput{
		PGCode:          order.PGCode,
		PayerID:         payerID,
		OrderNo:         order.OrderNo,
		Amount:          order.Amount.IntPart(),
		ProductName:     order.ProductName,
		CustomParameter: order.PublicKey,
		CallbackURL:     BuildCallbackURL(cfg.CallbackURL, order.OrderNo),
	})
	if err != nil {
		if errors.Is(err, payletter.ErrRequestFailed) {
			logger.Warnw("order_payment_gateway_unreachable", "order_no", order.OrderNo, "error", err)
			return nil, ErrPaymentServerUnavailable
		}
		logger.Errorw("order_payment_request_failed", "order_no", order.OrderNo, "error", err)
		return nil, ErrPaymentRejected
	}
	logger.Infow("order_payment_session_created",
		"order_no", order.OrderNo,
		"gateway_code", result.Code,
	)
	return result, nil
}

func (s *OrderService) payletterConfig() *payletter.Config {
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

// BuildCallbackURL 拼接回调地址：<base>/<order_no>/payment-callback
func BuildCallbackURL(base, orderNo string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return base + "/" + orderNo + "/payment-callback"
}

// isDuplicateKeyErr 识别唯一索引冲突。gorm 仅在开启 TranslateError 时
// 翻译为 ErrDuplicatedKey，未开启时按驱动错误文本识别。
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

// generateOrderNo 生成 8 位数字订单编号，碰撞时重试
func (s *OrderService) generateOrderNo() (string, error) {
	low := int64(1)
	for i := 1; i < orderNoDigits; i++ {
		low *= 10
	}
	span := low*10 - low
	for attempt := 0; attempt < orderNoMaxAttempts; attempt++ {
		n, err := rand.Int(rand.Reader, big.NewInt(span))
		if err != nil {
			return "", err
		}
		candidate := big.NewInt(0).Add(n, big.NewInt(low)).String()
		exists, err := s.orderRepo.ExistsByOrderNo(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", ErrOrderNoExhausted
}
