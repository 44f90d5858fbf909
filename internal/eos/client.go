package eos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OutcomeStatus 建户结果的封闭分类，在 HTTP 边界一次性判定
type OutcomeStatus string

const (
	OutcomeSuccess     OutcomeStatus = "success"     // 节点确认建户成功
	OutcomeUnreachable OutcomeStatus = "unreachable" // 节点不可达或超时，可重试
	OutcomeRejected    OutcomeStatus = "rejected"    // 节点拒绝请求，不可重试
)

// CreateOutcome 建户调用的结果
type CreateOutcome struct {
	Status OutcomeStatus `json:"status"`
	Code   int           `json:"code"` // HTTP 状态码，Unreachable 时为 0
	Body   string        `json:"body"` // 响应体摘录，用于诊断留痕
}

// CreateAccountInput 建户参数
type CreateAccountInput struct {
	Creator     string  // 出资账户
	AccountName string  // 目标账户名
	PublicKey   string  // owner/active 公钥
	CPU         float64 // CPU 抵押（EOS）
	NET         float64 // NET 抵押（EOS）
	RAM         int64   // RAM 购买（bytes）
}

// Client 钱包节点客户端
type Client struct {
	host        string
	accountPath string
	httpClient  *http.Client
}

// NewClient 构造钱包节点客户端
func NewClient(host, accountPath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(accountPath) == "" {
		accountPath = "/v1/accounts"
	}
	return &Client{
		host:        strings.TrimRight(strings.TrimSpace(host), "/"),
		accountPath: accountPath,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// AccountExists 查询链上账户是否已存在。只有 200 视为存在，
// 其余状态码一律视为不存在而非错误；网络层失败才返回 error。
func (c *Client) AccountExists(ctx context.Context, accountName string) (bool, error) {
	endpoint := c.host + c.accountPath + "/" + url.PathEscape(strings.TrimSpace(accountName))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK, nil
}

// CreateAccount 请求节点建户并归类结果。传输层失败归为 Unreachable，
// 2xx 归为 Success，其余归为 Rejected，调用方不再二次解释。
func (c *Client) CreateAccount(ctx context.Context, input CreateAccountInput) CreateOutcome {
	params := map[string]interface{}{
		"creator_eos_account": input.Creator,
		"account_name":        input.AccountName,
		"pubkey":              input.PublicKey,
		"cpu":                 fmt.Sprintf("%.4f EOS", input.CPU),
		"net":                 fmt.Sprintf("%.4f EOS", input.NET),
		"ram":                 input.RAM,
	}
	body, err := json.Marshal(params)
	if err != nil {
		return CreateOutcome{Status: OutcomeRejected, Body: err.Error()}
	}
	endpoint := c.host + c.accountPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return CreateOutcome{Status: OutcomeRejected, Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CreateOutcome{Status: OutcomeUnreachable, Body: err.Error()}
	}
	defer resp.Body.Close()
	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	outcome := CreateOutcome{Code: resp.StatusCode, Body: strings.TrimSpace(string(respBytes))}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		outcome.Status = OutcomeSuccess
	} else {
		outcome.Status = OutcomeRejected
	}
	return outcome
}
