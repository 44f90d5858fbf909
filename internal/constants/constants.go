package constants

// 订单状态常量
const (
	OrderStateCreated        = "created"
	OrderStatePaid           = "paid"
	OrderStateDelivered      = "delivered"
	OrderStateDeliveryFailed = "delivery_failed"
)

// 支付渠道常量（페이레터 pgcode，目前仅虚拟账户）
const (
	PGCodeVirtualAccount = "virtualaccount"
)

// 状态查询响应常量
const (
	StatusPendingPayment = "pending_payment"
	StatusProvisioning   = "provisioning"
	StatusDelivered      = "delivered"
	StatusDeliveryFailed = "delivery_failed"
)

// 异步任务常量
const (
	QueueDefault         = "default"
	TaskAccountProvision = "account:provision"
)

// 开通失败诊断类别常量
const (
	DeliveryDiagDuplicateAccount = "duplicate_account"
	DeliveryDiagUnreachable      = "connection_failed"
	DeliveryDiagRejected         = "rejected"
	DeliveryDiagPanic            = "panic"
)
