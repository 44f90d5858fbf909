package public

import "github.com/eoshub-next/internal/provider"

// Handler 公开接口处理器入口
// 说明：本服务不设用户体系，所有接口均为公开接口。
type Handler struct {
	*provider.Container
}

// New 创建公开接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
