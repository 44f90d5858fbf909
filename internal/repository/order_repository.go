package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/eoshub-next/internal/constants"
	"github.com/eoshub-next/internal/models"

	"gorm.io/gorm"
)

// OrderRepository 订单数据访问接口。订单状态的全部写入都经由本接口的
// 条件更新完成，不存在其它写路径。
type OrderRepository interface {
	Create(order *models.Order) error
	GetByOrderNo(orderNo string) (*models.Order, error)
	GetByOrderNoWithResults(orderNo string) (*models.Order, error)
	ExistsByOrderNo(orderNo string) (bool, error)
	ExistsByAccountName(accountName string) (bool, error)
	MarkPaid(orderNo string, updates map[string]interface{}) (bool, error)
	MarkDelivered(orderNo string) (bool, error)
	MarkDeliveryFailed(orderNo string, diagnostic models.JSON) (bool, error)
	RecordDeliveryDiagnostic(orderNo string, diagnostic models.JSON) error
	WithTx(tx *gorm.DB) *GormOrderRepository
}

// GormOrderRepository GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓库
func NewOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderRepository) WithTx(tx *gorm.DB) *GormOrderRepository {
	if tx == nil {
		return r
	}
	return &GormOrderRepository{db: tx}
}

// Create 创建订单
func (r *GormOrderRepository) Create(order *models.Order) error {
	return r.db.Create(order).Error
}

// GetByOrderNo 根据订单编号获取订单
func (r *GormOrderRepository) GetByOrderNo(orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// GetByOrderNoWithResults 根据订单编号获取订单及回调记录
func (r *GormOrderRepository) GetByOrderNoWithResults(orderNo string) (*models.Order, error) {
	orderNo = strings.TrimSpace(orderNo)
	if orderNo == "" {
		return nil, nil
	}
	var order models.Order
	if err := r.db.Preload("PaymentResults").Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ExistsByOrderNo 判断订单编号是否已占用
func (r *GormOrderRepository) ExistsByOrderNo(orderNo string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.Order{}).Where("order_no = ?", orderNo).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ExistsByAccountName 判断目标账户名是否已被其它订单占用
func (r *GormOrderRepository) ExistsByAccountName(accountName string) (bool, error) {
	accountName = strings.TrimSpace(accountName)
	if accountName == "" {
		return false, nil
	}
	var count int64
	if err := r.db.Model(&models.Order{}).Where("account_name = ?", accountName).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkPaid 条件更新 created → paid，返回是否发生了状态迁移。
// 并发重复回调时败方影响 0 行，不会重复迁移。
func (r *GormOrderRepository) MarkPaid(orderNo string, updates map[string]interface{}) (bool, error) {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["state"] = constants.OrderStatePaid
	updates["updated_at"] = time.Now()
	result := r.db.Model(&models.Order{}).
		Where("order_no = ? AND state = ?", orderNo, constants.OrderStateCreated).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkDelivered 条件更新 paid → delivered
func (r *GormOrderRepository) MarkDelivered(orderNo string) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("order_no = ? AND state = ?", orderNo, constants.OrderStatePaid).
		Updates(map[string]interface{}{
			"state":      constants.OrderStateDelivered,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// MarkDeliveryFailed 条件更新 paid → delivery_failed 并写入诊断
func (r *GormOrderRepository) MarkDeliveryFailed(orderNo string, diagnostic models.JSON) (bool, error) {
	result := r.db.Model(&models.Order{}).
		Where("order_no = ? AND state = ?", orderNo, constants.OrderStatePaid).
		Updates(map[string]interface{}{
			"state":            constants.OrderStateDeliveryFailed,
			"delivery_message": diagnostic,
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// RecordDeliveryDiagnostic 仅写入诊断，不改变状态（重复账户中止、
// 未知状态下的兜底路径）
func (r *GormOrderRepository) RecordDeliveryDiagnostic(orderNo string, diagnostic models.JSON) error {
	return r.db.Model(&models.Order{}).
		Where("order_no = ?", orderNo).
		Updates(map[string]interface{}{
			"delivery_message": diagnostic,
			"updated_at":       time.Now(),
		}).Error
}
