package models

import (
	"time"
)

// Order 订单表，从下单到账户开通的永久审计记录，禁止删除
type Order struct {
	ID               uint       `gorm:"primarykey" json:"id"`                           // 主键
	OrderNo          string     `gorm:"uniqueIndex;not null" json:"order_no"`           // 订单编号（8 位数字）
	ProductID        uint       `gorm:"index;not null;default:0" json:"product_id"`     // 商品ID（开通资源预算来源）
	AccountName      string     `gorm:"uniqueIndex:idx_orders_account_name,where:account_name <> ''" json:"account_name"` // 目标链上账户名
	PublicKey        string     `gorm:"type:varchar(128);not null" json:"public_key"`   // 绑定公钥，下单时确定
	PGCode           string     `gorm:"not null" json:"pg_code"`                        // 支付渠道
	Amount           Money      `gorm:"type:decimal(20,0);not null" json:"amount"`      // 金额快照（KRW）
	ProductName      string     `gorm:"not null" json:"product_name"`                   // 商品名快照
	State            string     `gorm:"index;not null" json:"state"`                    // 订单状态
	AccountNamePayer string     `gorm:"default:''" json:"account_name_payer,omitempty"` // 虚拟账户付款人名
	AccountNo        string     `gorm:"default:''" json:"account_no,omitempty"`         // 虚拟账户号
	BankCode         string     `gorm:"default:''" json:"bank_code,omitempty"`          // 虚拟账户银行代码
	BankName         string     `gorm:"default:''" json:"bank_name,omitempty"`          // 虚拟账户银行名
	ExpireDate       *time.Time `json:"expire_date,omitempty"`                          // 虚拟账户过期日
	TransactionID    string     `gorm:"index;default:''" json:"transaction_id"`         // PG 交易号，每次回调覆盖
	ReturnCode       string     `gorm:"default:''" json:"return_code"`                  // PG 返回码
	ReturnMessage    string     `gorm:"default:''" json:"return_message"`               // PG 返回消息
	DeliveryMessage  JSON       `gorm:"type:json" json:"delivery_message,omitempty"`    // 开通失败诊断
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                        // 创建时间
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`                        // 更新时间

	// 关联
	PaymentResults []PaymentResult `gorm:"foreignKey:OrderID" json:"payment_results,omitempty"` // 回调记录
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
