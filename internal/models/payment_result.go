package models

import (
	"time"
)

// PaymentResult 支付回调记录，每次回调追加一行，创建后不再修改
type PaymentResult struct {
	ID              uint       `gorm:"primarykey" json:"id"`                  // 主键
	OrderID         uint       `gorm:"index;not null" json:"order_id"`        // 订单ID
	PayerID         string     `gorm:"default:''" json:"payer_id"`            // 付款人标识（user_id）
	CID             string     `gorm:"index" json:"cid"`                      // PG 结算标识
	TID             string     `gorm:"index" json:"tid"`                      // PG 交易标识
	PayInfo         string     `gorm:"default:''" json:"pay_info"`            // 支付方式描述
	TransactionDate *time.Time `json:"transaction_date,omitempty"`            // 交易时间
	Payhash         string     `gorm:"default:''" json:"payhash"`             // PG 提供的认证摘要
	Code            string     `gorm:"default:''" json:"code"`                // 失败回调错误码
	Message         string     `gorm:"default:''" json:"message"`             // 失败回调错误消息
	Amount          Money      `gorm:"type:decimal(20,0)" json:"amount"`      // 回调金额
	Verified        bool       `gorm:"index;not null;default:false" json:"verified"` // 摘要校验是否通过
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`               // 创建时间
}

// TableName 指定表名
func (PaymentResult) TableName() string {
	return "payment_results"
}
