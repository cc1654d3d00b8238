// Package web serves the directory's pages and keeps each browser session's
// navigation in a router.Router.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nammakumta/directory/internal/config"
	"nammakumta/directory/internal/domain"
	"nammakumta/directory/internal/state"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// Catalog is the local mirror the pages are rendered from.
type Catalog interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	ListSubcategories(ctx context.Context, categoryID string) ([]*domain.Subcategory, error)
	GetSubcategory(ctx context.Context, id string) (*domain.Subcategory, error)
	ListShops(ctx context.Context) ([]*domain.Shop, error)
	ListShopsByCategory(ctx context.Context, categoryID string) ([]*domain.Shop, error)
	ListShopsBySubcategory(ctx context.Context, subcategoryID string) ([]*domain.Shop, error)
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	ListAdvertisements(ctx context.Context) ([]*domain.Advertisement, error)
	GetAdvertisement(ctx context.Context, id string) (*domain.Advertisement, error)
}

// Backend is the live REST backend, used for per-user data, writes and shops
// the mirror has not picked up yet.
type Backend interface {
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListFavorites(ctx context.Context, userID string) ([]*domain.Shop, error)
	ToggleFavorite(ctx context.Context, userID, shopID string) (bool, error)
	ToggleFlag(ctx context.Context, collection domain.Collection, id, flag string) (bool, error)
}

// Syncer schedules a mirror refresh.
type Syncer interface {
	Trigger()
}

type Server struct {
	catalog Catalog
	backend Backend
	syncer  Syncer
	nav     state.NavigationStore
	render  *renderer

	addr         string
	adminToken   string
	relatedLimit int
	maxEntries   int
	sessionTTL   time.Duration
	secureCookie bool

	pages   chi.Router
	handler http.Handler
}

func NewServer(
	cfg config.ServerConfig,
	navCfg config.NavigationConfig,
	catalog Catalog,
	backend Backend,
	syncer Syncer,
	nav state.NavigationStore,
) (*Server, error) {
	render, err := newRenderer()
	if err != nil {
		return nil, err
	}

	s := &Server{
		catalog:      catalog,
		backend:      backend,
		syncer:       syncer,
		nav:          nav,
		render:       render,
		addr:         cfg.Addr(),
		adminToken:   cfg.AdminToken,
		relatedLimit: cfg.RelatedLimit,
		maxEntries:   navCfg.MaxEntries,
		sessionTTL:   navCfg.TTL(),
		secureCookie: cfg.SecureCookie,
	}
	s.routes()

	return s, nil
}

func (s *Server) routes() {
	pages := chi.NewRouter()
	pages.Get("/", s.handleHome)
	pages.Get("/explore", s.handleExplore)
	pages.Get("/subcategories/{id}", s.handleSubcategory)
	pages.Get("/shops/{id}", s.handleShop)
	pages.Get("/ads/{id}", s.handleAd)
	pages.Get("/favorites", s.handleFavorites)
	pages.Get("/profile", s.handleProfile)
	pages.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderError(w, r, http.StatusNotFound, "Page not found")
	})
	s.pages = pages

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.adminOnly)
		r.Post("/{collection}/{id}/toggle/{flag}", s.handleAdminToggle)
		r.Post("/sync", s.handleAdminSync)
	})

	r.Group(func(r chi.Router) {
		r.Use(htmx)
		r.Use(s.session)

		r.Route("/nav", func(r chi.Router) {
			r.Post("/push", s.handlePush)
			r.Post("/replace", s.handleReplace)
			r.Post("/back", s.handleBack)
			r.Post("/forward", s.handleForward)
		})
		r.Post("/favorites/{shopID}/toggle", s.handleToggleFavorite)
		r.Mount("/", pages)
	})

	s.handler = r
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("🌐 Listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("🛑 Shutting down http server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
