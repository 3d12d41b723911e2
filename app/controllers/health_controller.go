package controllers

// RootController 根控制器
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]string{"message": "Shipping RAG API"})
}

// HealthController 健康检查控制器。
// 只反映进程存活，不依赖嵌入模型和向量索引是否就绪。
type HealthController struct {
	BaseController
}

func (c *HealthController) Health() {
	c.JSONSuccess(map[string]string{"status": "healthy"})
}
