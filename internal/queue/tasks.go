package queue

import (
	"encoding/json"

	"github.com/eoshub-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskAccountProvision 链上建户交付任务
	TaskAccountProvision = constants.TaskAccountProvision
)

// AccountProvisionPayload 建户任务载荷
type AccountProvisionPayload struct {
	OrderNo string `json:"order_no"`
}

// NewAccountProvisionTask 创建建户任务
func NewAccountProvisionTask(payload AccountProvisionPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccountProvision, body), nil
}
