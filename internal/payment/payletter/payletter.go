package payletter

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrConfigInvalid   = errors.New("payletter config invalid")
	ErrRequestFailed   = errors.New("payletter request failed")
	ErrResponseInvalid = errors.New("payletter response invalid")
	ErrPayhashInvalid  = errors.New("payletter payhash invalid")
)

// Config 페이레터配置
type Config struct {
	Host        string        `json:"host"`         // 网关地址
	PayAPIPath  string        `json:"pay_api_path"` // 下单接口路径
	ClientID    string        `json:"client_id"`    // 商户 client_id
	APIKey      string        `json:"api_key"`      // PLKEY 接口密钥
	PayhashKey  string        `json:"payhash_key"`  // 回调摘要密钥
	ReturnURL   string        `json:"return_url"`   // 同步跳转地址
	CallbackURL string        `json:"callback_url"` // 异步通知地址
	Timeout     time.Duration `json:"-"`
}

// ValidateConfig 校验配置完整性
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config is nil", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return fmt.Errorf("%w: client_id is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return fmt.Errorf("%w: api_key is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.PayhashKey) == "" {
		return fmt.Errorf("%w: payhash_key is required", ErrConfigInvalid)
	}
	return nil
}

// CreateInput 下单输入
type CreateInput struct {
	PGCode          string
	PayerID         string
	OrderNo         string
	Amount          int64
	ProductName     string
	CustomParameter string // 公钥随回调原样返回，省去二次查询
	ReturnURL       string
	CallbackURL     string
}

// CreateResult 下单结果（支付会话）
type CreateResult struct {
	OnlineURL string                 // PC 收银台地址
	MobileURL string                 // 移动端收银台地址
	Token     string                 // 支付会话 token
	Code      int                    // 网关状态码
	Message   string                 // 网关消息
	Raw       map[string]interface{} // 原始响应
}

// CreatePayment 请求支付会话。网关超时或不可达返回 ErrRequestFailed，
// 调用方据此与应用层拒绝区分。
func CreatePayment(ctx context.Context, cfg *Config, input CreateInput) (*CreateResult, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if input.OrderNo == "" || input.PayerID == "" || input.Amount <= 0 {
		return nil, ErrConfigInvalid
	}
	callbackURL := strings.TrimSpace(input.CallbackURL)
	if callbackURL == "" {
		callbackURL = strings.TrimSpace(cfg.CallbackURL)
	}
	returnURL := strings.TrimSpace(input.ReturnURL)
	if returnURL == "" {
		returnURL = strings.TrimSpace(cfg.ReturnURL)
	}

	params := map[string]interface{}{
		"pgcode":           input.PGCode,
		"client_id":        cfg.ClientID,
		"user_id":          input.PayerID,
		"order_no":         input.OrderNo,
		"amount":           input.Amount,
		"product_name":     input.ProductName,
		"custom_parameter": input.CustomParameter,
		"return_url":       returnURL,
		"callback_url":     callbackURL,
	}

	endpoint := buildEndpoint(cfg.Host, cfg.PayAPIPath)
	respBytes, err := postJSON(ctx, cfg, endpoint, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(respBytes, &raw)
	var resp struct {
		OnlineURL string `json:"online_url"`
		MobileURL string `json:"mobile_url"`
		Token     string `json:"token"`
		Code      int    `json:"code"`
		Message   string `json:"message"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return &CreateResult{
		OnlineURL: strings.TrimSpace(resp.OnlineURL),
		MobileURL: strings.TrimSpace(resp.MobileURL),
		Token:     strings.TrimSpace(resp.Token),
		Code:      resp.Code,
		Message:   strings.TrimSpace(resp.Message),
		Raw:       raw,
	}, nil
}

// CallbackData 异步通知载荷
type CallbackData struct {
	OrderNo         string      `json:"order_no"`
	UserID          string      `json:"user_id"`
	Amount          interface{} `json:"amount"` // 可能是 number 或 string
	TID             string      `json:"tid"`
	CID             string      `json:"cid"`
	PayInfo         string      `json:"pay_info"`
	TransactionDate string      `json:"transaction_date"`
	Payhash         string      `json:"payhash"`
	Code            string      `json:"code"`
	Message         string      `json:"message"`

	// 虚拟账户发放字段
	AccountName string `json:"account_name"`
	AccountNo   string `json:"account_no"`
	BankCode    string `json:"bank_code"`
	BankName    string `json:"bank_name"`
	ExpireDate  string `json:"expire_date"`

	CustomParameter string `json:"custom_parameter"`
}

// GetAmount 获取回调金额（整数 KRW）
func (c *CallbackData) GetAmount() int64 {
	switch v := c.Amount.(type) {
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	}
	return 0
}

// IsComplete 判断回调是否表示一笔已完成支付
func (c *CallbackData) IsComplete() bool {
	return strings.TrimSpace(c.TID) != "" && strings.TrimSpace(c.CID) != ""
}

// ComputePayhash 计算认证摘要：SHA-256(user_id + amount + tid + key)，大写十六进制
func ComputePayhash(payerID string, amount int64, tid, key string) string {
	content := payerID + strconv.FormatInt(amount, 10) + tid + key
	sum := sha256.Sum256([]byte(content))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// VerifyCallback 校验回调摘要
func VerifyCallback(cfg *Config, data *CallbackData) error {
	if cfg == nil || data == nil {
		return ErrConfigInvalid
	}
	expected := ComputePayhash(data.UserID, data.GetAmount(), strings.TrimSpace(data.TID), cfg.PayhashKey)
	if !strings.EqualFold(expected, strings.TrimSpace(data.Payhash)) {
		return ErrPayhashInvalid
	}
	return nil
}

// ParseTransactionDate 解析交易时间字段
func ParseTransactionDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	layouts := []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"20060102150405",
		"2006-01-02",
		"20060102",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func buildEndpoint(host, apiPath string) string {
	base := strings.TrimRight(strings.TrimSpace(host), "/")
	path := strings.TrimSpace(apiPath)
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func postJSON(ctx context.Context, cfg *Config, endpoint string, params map[string]interface{}) ([]byte, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "PLKEY "+cfg.APIKey)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBytes)))
	}
	return respBytes, nil
}
