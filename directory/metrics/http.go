package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ard1102/p2p/pkg/index"
)

// Router builds a read-only gin.Engine exposing /healthz, /metrics
// (Prometheus exposition format), and /debug/index (a JSON dump of the
// current catalog). It is a pure introspection surface and never
// mutates idx.
func Router(m *Metrics, idx *index.Index) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	r.GET("/debug/index", func(c *gin.Context) {
		files := idx.ListFiles()
		dump := make(map[string][]index.EnrichedServing, len(files))
		for _, f := range files {
			dump[f] = idx.PeersForFile(f)
		}
		m.SetCatalogSize(len(files), len(idx.AllPeerIDs()))
		c.JSON(http.StatusOK, gin.H{"files": dump, "peer_count": len(idx.AllPeerIDs())})
	})

	return r
}
