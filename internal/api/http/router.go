// Package apihttp assembles viewd's ambient ops surface: middleware, the
// Prometheus exposition endpoint, and liveness/readiness probes, grounded
// on the teacher's internal/api/http server-assembly wiring. It
// deliberately does NOT expose a view-call endpoint: spec.md §1 places
// "the HTTP/JSON-RPC surface and request parsing layer" out of scope for
// this core, so the only way to run a view call is cmd/viewd's `view`
// one-shot subcommand, which calls the coordinator directly. /metrics and
// /health are fixed, argument-free operational endpoints, not a request
// parsing surface for arbitrary contract calls, so they stay in scope as
// the ambient observability the teacher also carries.
package apihttp

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/weisyn/viewd/internal/api/http/handlers"
	"github.com/weisyn/viewd/internal/api/http/middleware"
	"github.com/weisyn/viewd/internal/resolver"
	"github.com/weisyn/viewd/pkg/log"
)

// NewEngine builds the gin.Engine serving viewd's ops endpoints.
func NewEngine(res *resolver.Resolver, logger log.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(logger))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.NewHealthHandler(res).RegisterRoutes(&r.RouterGroup)

	return r
}
