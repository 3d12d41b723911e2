package router

import (
	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/seatrade/rag-backend/app/controllers"
)

// Init registers all routes. Must be called after bootstrap.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")
	web.Handler("/metrics", promhttp.Handler())

	web.Router("/api/ask", &controllers.AskController{}, "post:Post")
	web.Router("/api/sync", &controllers.SyncController{}, "post:Post")
	web.Router("/api/files", &controllers.FileController{}, "get:List;post:Upload")
}
