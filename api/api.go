// Package api serves block pages and their view trees over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oasisprotocol/blockview/log"
	"github.com/oasisprotocol/blockview/metrics"
	"github.com/oasisprotocol/blockview/types"
	"github.com/oasisprotocol/blockview/view"
)

const moduleName = "api"

// BlockResolver supplies the data that views declare in their fragments.
// A block that does not exist is nil with no error.
type BlockResolver interface {
	Block(ctx context.Context, height int64, frag *view.Fragment) (*types.Block, error)
	BlockByHash(ctx context.Context, hash string, frag *view.Fragment) (*types.Block, error)
	LatestHeight(ctx context.Context) (int64, error)
}

// BlockviewAPI is the HTTP surface of blockview: HTML block pages and the
// same pages as JSON view trees.
type BlockviewAPI struct {
	router   *chi.Mux
	resolver BlockResolver
	renderer *view.Renderer
	logger   *log.Logger
}

// NewBlockviewAPI creates the API. A positive requestTimeout bounds the
// time spent resolving each request; exceeding it replies 504.
func NewBlockviewAPI(resolver BlockResolver, renderer *view.Renderer, requestTimeout time.Duration, l *log.Logger) *BlockviewAPI {
	a := &BlockviewAPI{
		router:   chi.NewRouter(),
		resolver: resolver,
		renderer: renderer,
		logger:   l.WithModule(moduleName),
	}

	r := a.router
	r.Use(MetricsMiddleware(metrics.NewDefaultRequestMetrics(moduleName), a.logger))
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)
	if requestTimeout > 0 {
		r.Use(TimeoutMiddleware(requestTimeout))
	}

	r.Get("/", a.latestBlockRedirect)
	r.Route("/blocks", func(r chi.Router) {
		r.Get("/{height}", a.blockPage)
		r.Get("/hash/{hash}", a.blockByHashPage)
	})
	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", a.status)
		r.Get("/blocks/{height}", a.blockView)
		r.Get("/blocks/hash/{hash}", a.blockByHashView)
		r.NotFound(a.jsonNotFound)
	})
	r.NotFound(a.pageNotFound)

	return a
}

// Router returns the root handler of the API.
func (a *BlockviewAPI) Router() http.Handler {
	return a.router
}
