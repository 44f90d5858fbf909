package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eoshub-next/internal/constants"
	"github.com/eoshub-next/internal/eos"
	"github.com/eoshub-next/internal/models"
	"github.com/eoshub-next/internal/provider"
	"github.com/eoshub-next/internal/queue"
	"github.com/eoshub-next/internal/repository"
	"github.com/eoshub-next/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

func setupConsumerTest(t *testing.T, nodeURL string) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:consumer_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.PaymentResult{}, &models.Product{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)
	container := &provider.Container{
		OrderRepo:   orderRepo,
		ProductRepo: productRepo,
		ProvisionService: service.NewProvisionService(
			orderRepo,
			productRepo,
			eos.NewClient(nodeURL, "/v1/accounts", time.Second),
		),
	}
	return NewConsumer(container), db
}

func TestHandleAccountProvisionMalformedPayload(t *testing.T) {
	c, _ := setupConsumerTest(t, "http://127.0.0.1:0")
	task := asynq.NewTask(queue.TaskAccountProvision, []byte(`{not-json`))
	err := c.handleAccountProvision(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for malformed payload, got: %v", err)
	}
}

func TestHandleAccountProvisionEmptyOrderNo(t *testing.T) {
	c, _ := setupConsumerTest(t, "http://127.0.0.1:0")
	task, err := queue.NewAccountProvisionTask(queue.AccountProvisionPayload{OrderNo: "  "})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := c.handleAccountProvision(context.Background(), task); err != nil {
		t.Fatalf("expected nil for empty order no, got: %v", err)
	}
}

func TestHandleAccountProvisionMissingOrderIsTerminal(t *testing.T) {
	c, _ := setupConsumerTest(t, "http://127.0.0.1:0")
	task, _ := queue.NewAccountProvisionTask(queue.AccountProvisionPayload{OrderNo: "99999999"})
	if err := c.handleAccountProvision(context.Background(), task); err != nil {
		t.Fatalf("expected terminal condition to absorb error, got: %v", err)
	}
}

func TestHandleAccountProvisionDelivers(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer node.Close()

	c, db := setupConsumerTest(t, node.URL)
	product := &models.Product{
		Name:           "eos account",
		Price:          models.NewMoneyFromInt(5000),
		IsActive:       true,
		CreatorAccount: "creatoracct1",
		CPU:            0.1,
		NET:            0.1,
		RAM:            4096,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	order := &models.Order{
		OrderNo:     "50000001",
		ProductID:   product.ID,
		AccountName: "workeracct12",
		PublicKey:   "EOS5testkeytestkeytestkeytestkeytestkeytestkeytestkey",
		PGCode:      constants.PGCodeVirtualAccount,
		Amount:      models.NewMoneyFromInt(5000),
		ProductName: product.Name,
		State:       constants.OrderStatePaid,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	task, _ := queue.NewAccountProvisionTask(queue.AccountProvisionPayload{OrderNo: "50000001"})
	if err := c.handleAccountProvision(context.Background(), task); err != nil {
		t.Fatalf("handleAccountProvision error: %v", err)
	}

	var got models.Order
	_ = db.Where("order_no = ?", "50000001").First(&got).Error
	if got.State != constants.OrderStateDelivered {
		t.Fatalf("expected delivered, got: %s", got.State)
	}
}

func TestHandleAccountProvisionUnreachableFinalAttempt(t *testing.T) {
	node := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	node.Close()

	c, db := setupConsumerTest(t, node.URL)
	order := &models.Order{
		OrderNo:     "50000002",
		ProductID:   1,
		AccountName: "workeracct34",
		PublicKey:   "EOS5testkeytestkeytestkeytestkeytestkeytestkeytestkey",
		PGCode:      constants.PGCodeVirtualAccount,
		Amount:      models.NewMoneyFromInt(5000),
		ProductName: "eos account",
		State:       constants.OrderStatePaid,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}

	// 无 asynq 上下文时按最终尝试处理：定格失败并跳过重试
	task, _ := queue.NewAccountProvisionTask(queue.AccountProvisionPayload{OrderNo: "50000002"})
	err := c.handleAccountProvision(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry on final attempt, got: %v", err)
	}

	var got models.Order
	_ = db.Where("order_no = ?", "50000002").First(&got).Error
	if got.State != constants.OrderStateDeliveryFailed {
		t.Fatalf("expected delivery_failed, got: %s", got.State)
	}
}
