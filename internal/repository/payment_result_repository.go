package repository

import (
	"gorm.io/gorm"

	"github.com/eoshub-next/internal/models"
)

// PaymentResultRepository 支付回调记录数据访问接口（只追加）
type PaymentResultRepository interface {
	Create(result *models.PaymentResult) error
	ListByOrderID(orderID uint) ([]models.PaymentResult, error)
	CountVerifiedByOrderID(orderID uint) (int64, error)
	WithTx(tx *gorm.DB) *GormPaymentResultRepository
}

// GormPaymentResultRepository GORM 实现
type GormPaymentResultRepository struct {
	db *gorm.DB
}

// NewPaymentResultRepository 创建支付回调记录仓库
func NewPaymentResultRepository(db *gorm.DB) *GormPaymentResultRepository {
	return &GormPaymentResultRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentResultRepository) WithTx(tx *gorm.DB) *GormPaymentResultRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentResultRepository{db: tx}
}

// Create 追加回调记录
func (r *GormPaymentResultRepository) Create(result *models.PaymentResult) error {
	return r.db.Create(result).Error
}

// ListByOrderID 获取订单的回调记录
func (r *GormPaymentResultRepository) ListByOrderID(orderID uint) ([]models.PaymentResult, error) {
	var results []models.PaymentResult
	if err := r.db.Where("order_id = ?", orderID).Order("id asc").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// CountVerifiedByOrderID 统计订单的已验证回调记录数
func (r *GormPaymentResultRepository) CountVerifiedByOrderID(orderID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.PaymentResult{}).
		Where("order_id = ? AND verified = ?", orderID, true).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
