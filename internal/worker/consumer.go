package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/eoshub-next/internal/logger"
	"github.com/eoshub-next/internal/provider"
	"github.com/eoshub-next/internal/queue"
	"github.com/eoshub-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskAccountProvision, c.handleAccountProvision)
}

func (c *Consumer) handleAccountProvision(ctx context.Context, task *asynq.Task) (err error) {
	if c == nil || task == nil {
		logger.Debugw("worker_account_provision_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.AccountProvisionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_account_provision_unmarshal_failed", "error", err)
		return fmt.Errorf("payload invalid: %v: %w", err, asynq.SkipRetry)
	}
	orderNo := strings.TrimSpace(payload.OrderNo)
	if orderNo == "" {
		logger.Debugw("worker_account_provision_skip_empty_order_no")
		return nil
	}
	if c.ProvisionService == nil {
		logger.Warnw("worker_account_provision_skip_service_nil", "order_no", orderNo)
		return nil
	}

	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	finalAttempt := retried >= maxRetry

	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("worker_account_provision_panic", "order_no", orderNo, "panic", r)
			c.ProvisionService.RecordPanic(orderNo, fmt.Sprint(r))
			err = fmt.Errorf("provision panic: %v: %w", r, asynq.SkipRetry)
		}
	}()

	err = c.ProvisionService.ProvisionAccount(ctx, orderNo, finalAttempt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrProvisionOrderMissing),
		errors.Is(err, service.ErrProvisionOrderNotPaid),
		errors.Is(err, service.ErrProvisionProductMissing),
		errors.Is(err, service.ErrProvisionDuplicateAccount),
		errors.Is(err, service.ErrAccountNodeRejected):
		// 终态已在服务层落库，重试没有意义
		logger.Warnw("worker_account_provision_terminal", "order_no", orderNo, "reason", err.Error())
		return nil
	case errors.Is(err, service.ErrAccountNodeUnreachable):
		if finalAttempt {
			logger.Errorw("worker_account_provision_unreachable_final", "order_no", orderNo, "error", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		logger.Warnw("worker_account_provision_unreachable_retry", "order_no", orderNo, "error", err)
		return err
	default:
		logger.Errorw("worker_account_provision_failed", "order_no", orderNo, "error", err)
		return err
	}
}
