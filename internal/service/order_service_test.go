package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eoshub-next/internal/config"
	"github.com/eoshub-next/internal/constants"
	"github.com/eoshub-next/internal/eos"
	"github.com/eoshub-next/internal/models"
	"github.com/eoshub-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const testPublicKey = "EOS5testkeytestkeytestkeytestkeytestkeytestkeytestkey"

func setupOrderServiceTest(t *testing.T, gatewayURL, nodeURL string) (*OrderService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:order_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Order{},
		&models.PaymentResult{},
		&models.Product{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	payCfg := &config.PayletterConfig{
		Host:        gatewayURL,
		PayAPIPath:  "/v1.0/payments/request",
		ClientID:    "test_client",
		APIKey:      "test_api_key",
		PayhashKey:  "test-payhash-key",
		CallbackURL: "https://shop.example/api/v1/orders",
		TimeoutMS:   2000,
	}
	svc := NewOrderService(
		repository.NewOrderRepository(db),
		repository.NewProductRepository(db),
		eos.NewClient(nodeURL, "/v1/accounts", 2*time.Second),
		payCfg,
	)
	return svc, db
}

// newNodeStub 钱包节点桩：existing 中的账户名查询返回 200，其余 404
func newNodeStub(t *testing.T, existing map[string]bool, queried *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if queried != nil {
			atomic.AddInt32(queried, 1)
		}
		name := path.Base(r.URL.Path)
		if existing[name] {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
}

func createTestProduct(t *testing.T, db *gorm.DB, active bool) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:           "eos account",
		Price:          models.NewMoneyFromInt(5000),
		IsActive:       active,
		CreatorAccount: "creatoracct1",
		CPU:            0.1,
		NET:            0.1,
		RAM:            4096,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func newGatewayStub(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"online_url": "https://pg.example/pay/session",
			"mobile_url": "https://pg.example/m/pay/session",
			"token":      "tok_session",
			"code":       0,
		})
	}))
}

func TestCreateOrderSucceeds(t *testing.T) {
	gateway := newGatewayStub(t)
	defer gateway.Close()
	node := newNodeStub(t, nil, nil)
	defer node.Close()
	svc, db := setupOrderServiceTest(t, gateway.URL, node.URL)
	product := createTestProduct(t, db, true)

	result, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID:   product.ID,
		AccountName: "freshaccount",
		PublicKey:   testPublicKey,
		PayerID:     "payer1",
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if len(result.Order.OrderNo) != 8 {
		t.Fatalf("expected 8-digit order no, got: %s", result.Order.OrderNo)
	}
	if result.Order.State != constants.OrderStateCreated {
		t.Fatalf("expected created state, got: %s", result.Order.State)
	}
	if result.Order.PGCode != constants.PGCodeVirtualAccount {
		t.Fatalf("expected default pg code, got: %s", result.Order.PGCode)
	}
	if !result.Order.Amount.Equal(models.NewMoneyFromInt(5000).Decimal) {
		t.Fatalf("expected amount snapshot, got: %s", result.Order.Amount.String())
	}
	if result.OnlineURL != "https://pg.example/pay/session" {
		t.Fatalf("expected payment session url, got: %s", result.OnlineURL)
	}
}

func TestCreateOrderDuplicateAccount(t *testing.T) {
	gateway := newGatewayStub(t)
	defer gateway.Close()
	node := newNodeStub(t, nil, nil)
	defer node.Close()
	svc, db := setupOrderServiceTest(t, gateway.URL, node.URL)
	product := createTestProduct(t, db, true)

	if _, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID:   product.ID,
		AccountName: "takenaccount",
		PublicKey:   testPublicKey,
		PayerID:     "payer1",
	}); err != nil {
		t.Fatalf("first CreateOrder error: %v", err)
	}
	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID:   product.ID,
		AccountName: "takenaccount",
		PublicKey:   testPublicKey,
		PayerID:     "payer2",
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got: %v", err)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	gateway := newGatewayStub(t)
	defer gateway.Close()
	node := newNodeStub(t, nil, nil)
	defer node.Close()
	svc, db := setupOrderServiceTest(t, gateway.URL, node.URL)
	product := createTestProduct(t, db, true)

	cases := []struct {
		name  string
		input CreateOrderInput
		want  error
	}{
		{"short_account", CreateOrderInput{ProductID: product.ID, AccountName: "short", PublicKey: testPublicKey, PayerID: "p"}, ErrAccountNameInvalid},
		{"bad_chars", CreateOrderInput{ProductID: product.ID, AccountName: "badaccount06", PublicKey: testPublicKey, PayerID: "p"}, ErrAccountNameInvalid},
		{"bad_pubkey", CreateOrderInput{ProductID: product.ID, AccountName: "validaccount", PublicKey: "EOS-invalid", PayerID: "p"}, ErrPublicKeyInvalid},
		{"empty_payer", CreateOrderInput{ProductID: product.ID, AccountName: "validaccount", PublicKey: testPublicKey, PayerID: " "}, ErrOrderInvalid},
	}
	for _, tc := range cases {
		if _, err := svc.CreateOrder(context.Background(), tc.input); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got: %v", tc.name, tc.want, err)
		}
	}
}

func TestCreateOrderProductChecks(t *testing.T) {
	gateway := newGatewayStub(t)
	defer gateway.Close()
	node := newNodeStub(t, nil, nil)
	defer node.Close()
	svc, db := setupOrderServiceTest(t, gateway.URL, node.URL)
	inactive := createTestProduct(t, db, false)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID:   inactive.ID,
		AccountName: "validaccount",
		PublicKey:   testPublicKey,
		PayerID:     "payer1",
	})
	if !errors.Is(err, ErrProductDeactivated) {
		t.Fatalf("expected ErrProductDeactivated, got: %v", err)
	}

	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID:   inactive.ID + 100,
		AccountName: "validaccount",
		PublicKey:   testPublicKey,
		PayerID:     "payer1",
	})
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
}

func TestCreateOrderGatewayUnreachableKeepsOrder(t *testing.T) {
	gateway := newGatewayStub(t)
	gateway.Close()
	node := newNodeStub(t, nil, nil)
	defer node.Close()
	svc, db := setupOrderServiceTest(t, gateway.URL, node.URL)
	product := createTestProduct(t, db, true)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID:   product.ID,
		AccountName: "validaccount",
		PublicKey:   testPublicKey,
		PayerID:     "payer1",
	})
	if !errors.Is(err, ErrPaymentServerUnavailable) {
		t.Fatalf("expected ErrPaymentServerUnavailable, got: %v", err)
	}

	// 订单保留在 created 状态，可另行补发支付
	var order models.Order
	if err := db.Where("account_name = ?", "validaccount").First(&order).Error; err != nil {
		t.Fatalf("expected order to persist: %v", err)
	}
	if order.State != constants.OrderStateCreated {
		t.Fatalf("expected created, got: %s", order.State)
	}
}

func TestCreateOrderAccountAlreadyOnChain(t *testing.T) {
	gateway := newGatewayStub(t)
	defer gateway.Close()
	var queried int32
	node := newNodeStub(t, map[string]bool{"takenonchain": true}, &queried)
	defer node.Close()
	svc, db := setupOrderServiceTest(t, gateway.URL, node.URL)
	product := createTestProduct(t, db, true)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID:   product.ID,
		AccountName: "takenonchain",
		PublicKey:   testPublicKey,
		PayerID:     "payer1",
	})
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got: %v", err)
	}
	if atomic.LoadInt32(&queried) == 0 {
		t.Fatalf("expected wallet node existence query before order creation")
	}

	var count int64
	if err := db.Model(&models.Order{}).Where("account_name = ?", "takenonchain").Count(&count).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no order persisted for on-chain account, got %d", count)
	}
}

func TestCreateOrderNodeUnreachable(t *testing.T) {
	gateway := newGatewayStub(t)
	defer gateway.Close()
	node := newNodeStub(t, nil, nil)
	node.Close()
	svc, db := setupOrderServiceTest(t, gateway.URL, node.URL)
	product := createTestProduct(t, db, true)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		ProductID:   product.ID,
		AccountName: "validaccount",
		PublicKey:   testPublicKey,
		PayerID:     "payer1",
	})
	if !errors.Is(err, ErrAccountNodeUnreachable) {
		t.Fatalf("expected ErrAccountNodeUnreachable, got: %v", err)
	}

	var count int64
	if err := db.Model(&models.Order{}).Count(&count).Error; err != nil {
		t.Fatalf("count orders failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no order persisted when node check fails, got %d", count)
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	gateway := newGatewayStub(t)
	defer gateway.Close()
	node := newNodeStub(t, nil, nil)
	defer node.Close()
	_, db := setupOrderServiceTest(t, gateway.URL, node.URL)

	repo := repository.NewOrderRepository(db)
	first := &models.Order{
		OrderNo:     "70000001",
		ProductID:   1,
		AccountName: "racedaccount",
		PublicKey:   testPublicKey,
		PGCode:      constants.PGCodeVirtualAccount,
		Amount:      models.NewMoneyFromInt(5000),
		ProductName: "eos account",
		State:       constants.OrderStateCreated,
	}
	if err := repo.Create(first); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	second := *first
	second.ID = 0
	second.OrderNo = "70000002"
	err := repo.Create(&second)
	if err == nil {
		t.Fatalf("expected unique index violation on account_name")
	}
	if !isDuplicateKeyErr(err) {
		t.Fatalf("expected duplicate key classification, got: %v", err)
	}
	if !isDuplicateKeyErr(gorm.ErrDuplicatedKey) {
		t.Fatalf("expected gorm.ErrDuplicatedKey to classify as duplicate")
	}
	if isDuplicateKeyErr(errors.New("connection reset")) {
		t.Fatalf("unrelated error should not classify as duplicate")
	}
}

func TestBuildCallbackURL(t *testing.T) {
	got := BuildCallbackURL("https://shop.example/api/v1/orders/", "12345678")
	want := "https://shop.example/api/v1/orders/12345678/payment-callback"
	if got != want {
		t.Fatalf("BuildCallbackURL = %s, want %s", got, want)
	}
	if BuildCallbackURL("  ", "12345678") != "" {
		t.Fatalf("expected empty result for blank base")
	}
}
