package models

import (
	"time"
)

// Product 商品表（链上账户商品，含开通资源预算）
type Product struct {
	ID             uint      `gorm:"primarykey" json:"id"`                      // 主键
	Name           string    `gorm:"index;not null" json:"name"`                // 商品名
	Price          Money     `gorm:"type:decimal(20,0);not null" json:"price"`  // 价格（KRW）
	IsActive       bool      `gorm:"index;not null;default:false" json:"is_active"` // 是否上架
	CreatorAccount string    `gorm:"default:''" json:"creator_account"`         // 开通账户的创建者账户
	CPU            float64   `gorm:"not null;default:0" json:"cpu"`             // CPU 抵押额度
	NET            float64   `gorm:"not null;default:0" json:"net"`             // NET 抵押额度
	RAM            int64     `gorm:"not null;default:0" json:"ram"`             // RAM 购买字节数
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                   // 创建时间
	UpdatedAt      time.Time `json:"updated_at"`                                // 更新时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}
