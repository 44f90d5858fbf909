package public

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eoshub-next/internal/config"
	"github.com/eoshub-next/internal/constants"
	"github.com/eoshub-next/internal/models"
	"github.com/eoshub-next/internal/payment/payletter"
	"github.com/eoshub-next/internal/provider"
	"github.com/eoshub-next/internal/queue"
	"github.com/eoshub-next/internal/repository"
	"github.com/eoshub-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

const callbackTestKey = "handler-test-key"

func setupCallbackHandlerTest(t *testing.T) (*Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dsn := fmt.Sprintf("file:callback_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.PaymentResult{}, &models.Product{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	queueClient, _ := queue.NewClient(nil)
	orderRepo := repository.NewOrderRepository(db)
	resultRepo := repository.NewPaymentResultRepository(db)
	payCfg := &config.PayletterConfig{PayhashKey: callbackTestKey}
	container := &provider.Container{
		OrderRepo:         orderRepo,
		PaymentResultRepo: resultRepo,
		PaymentService:    service.NewPaymentService(db, orderRepo, resultRepo, queueClient, payCfg),
		OrderService:      service.NewOrderService(orderRepo, repository.NewProductRepository(db), nil, payCfg),
	}
	return New(container), db
}

func createHandlerTestOrder(t *testing.T, db *gorm.DB, orderNo, state string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:     orderNo,
		ProductID:   1,
		AccountName: "handleracct" + orderNo[7:],
		PublicKey:   "EOS5testkeytestkeytestkeytestkeytestkeytestkeytestkey",
		PGCode:      constants.PGCodeVirtualAccount,
		Amount:      models.NewMoneyFromInt(5000),
		ProductName: "eos account",
		State:       state,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	return order
}

func postCallback(t *testing.T, h *Handler, orderNo, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderNo+"/payment-callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "order_no", Value: orderNo}}
	h.PaymentCallback(c)
	return w
}

func TestPaymentCallbackAcksVerifiedPayment(t *testing.T) {
	h, db := setupCallbackHandlerTest(t)
	createHandlerTestOrder(t, db, "40000001", constants.OrderStateCreated)

	payhash := payletter.ComputePayhash("payer1", 5000, "tid-hd1", callbackTestKey)
	body := fmt.Sprintf(`{"order_no":"40000001","user_id":"payer1","amount":5000,"tid":"tid-hd1","cid":"cid-hd1","payhash":"%s"}`, payhash)
	w := postCallback(t, h, "40000001", body)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["code"] != float64(0) {
		t.Fatalf("expected fixed ack body, got: %v", resp)
	}

	var order models.Order
	_ = db.Where("order_no = ?", "40000001").First(&order).Error
	if order.State != constants.OrderStatePaid {
		t.Fatalf("expected paid, got: %s", order.State)
	}
}

func TestPaymentCallbackAcksForgedPayload(t *testing.T) {
	h, db := setupCallbackHandlerTest(t)
	createHandlerTestOrder(t, db, "40000002", constants.OrderStateCreated)

	body := `{"order_no":"40000002","user_id":"payer1","amount":5000,"tid":"tid-hd2","cid":"cid-hd2","payhash":"FORGED"}`
	w := postCallback(t, h, "40000002", body)

	// 伪造回调同样应答 200，不向回调方暴露校验细节
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var order models.Order
	_ = db.Where("order_no = ?", "40000002").First(&order).Error
	if order.State != constants.OrderStateCreated {
		t.Fatalf("forged callback must not transition, got: %s", order.State)
	}
}

func TestPaymentCallbackAcksUnknownOrder(t *testing.T) {
	h, _ := setupCallbackHandlerTest(t)
	w := postCallback(t, h, "99999999", `{"user_id":"payer1","amount":5000}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestPaymentCallbackAcksMalformedBody(t *testing.T) {
	h, _ := setupCallbackHandlerTest(t)
	w := postCallback(t, h, "40000003", `{not-json`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestOrderStatusEndpoint(t *testing.T) {
	h, db := setupCallbackHandlerTest(t)
	createHandlerTestOrder(t, db, "40000004", constants.OrderStatePaid)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/40000004/status", nil)
	c.Params = gin.Params{{Key: "order_no", Value: "40000004"}}
	h.OrderStatus(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		StatusCode int `json:"status_code"`
		Data       struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != 0 || resp.Data.Status != constants.StatusProvisioning {
		t.Fatalf("unexpected response: %s", w.Body.String())
	}
}

func TestOrderStatusDeliveredCarriesKey(t *testing.T) {
	h, db := setupCallbackHandlerTest(t)
	order := createHandlerTestOrder(t, db, "40000005", constants.OrderStateDelivered)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/40000005/status", nil)
	c.Params = gin.Params{{Key: "order_no", Value: "40000005"}}
	h.OrderStatus(c)

	var resp struct {
		StatusCode int `json:"status_code"`
		Data       struct {
			Status      string `json:"status"`
			AccountName string `json:"account_name"`
			PublicKey   string `json:"public_key"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.Data.Status != constants.StatusDelivered {
		t.Fatalf("expected delivered status, got: %s", w.Body.String())
	}
	if resp.Data.AccountName != order.AccountName || resp.Data.PublicKey != order.PublicKey {
		t.Fatalf("delivered status must carry account name and public key: %s", w.Body.String())
	}
}

func TestOrderStatusNotFound(t *testing.T) {
	h, _ := setupCallbackHandlerTest(t)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/orders/00000000/status", nil)
	c.Params = gin.Params{{Key: "order_no", Value: "00000000"}}
	h.OrderStatus(c)

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["status_code"] != float64(404) {
		t.Fatalf("expected 404 status code, got: %v", resp["status_code"])
	}
}
