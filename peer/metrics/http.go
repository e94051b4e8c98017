package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds a read-only gin.Engine exposing /healthz, /metrics
// (Prometheus exposition format), and /debug/status (a JSON dump of
// the collector's Snapshot), independent of the peer's transfer and
// control ports, mirroring directory/metrics.Router.
func Router(c *Collector) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})))

	r.GET("/debug/status", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, c.Snapshot())
	})

	return r
}
