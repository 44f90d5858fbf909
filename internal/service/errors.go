package service

import "errors"

// 服务层错误定义
var (
	ErrOrderInvalid             = errors.New("订单参数无效")
	ErrOrderNotFound            = errors.New("订单不存在")
	ErrOrderCreateFailed        = errors.New("订单创建失败")
	ErrOrderNoExhausted         = errors.New("订单编号生成失败")
	ErrAccountNameInvalid       = errors.New("账户名格式无效")
	ErrDuplicateAccount         = errors.New("账户名已被占用")
	ErrPublicKeyInvalid         = errors.New("公钥格式无效")
	ErrProductNotFound          = errors.New("商品不存在")
	ErrProductDeactivated       = errors.New("商品已下架")
	ErrPaymentServerUnavailable = errors.New("支付网关不可用")
	ErrPaymentRejected          = errors.New("支付网关拒绝请求")
	ErrCallbackInvalid          = errors.New("回调校验失败")
	ErrCallbackStateConflict    = errors.New("订单状态不接受支付回调")
	ErrCallbackApplyFailed      = errors.New("回调处理失败")
)
