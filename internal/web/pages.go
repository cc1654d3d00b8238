package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"nammakumta/directory/internal/client"
	"nammakumta/directory/internal/domain"
	"nammakumta/directory/internal/related"
	"nammakumta/directory/internal/repository"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

const summaryRunes = 280

type favoriteView struct {
	ShopID   string
	Favorite bool
}

// fail maps backend and mirror errors onto a status page.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, client.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "We could not find that")
	case errors.Is(err, client.ErrCircuitOpen):
		s.renderError(w, r, http.StatusServiceUnavailable, "The directory is busy, try again in a minute")
	default:
		log.WithError(err).WithField("path", r.URL.Path).Error("❌ Request failed")
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong")
	}
}

func activeShops(shops []*domain.Shop) []*domain.Shop {
	out := make([]*domain.Shop, 0, len(shops))
	for _, sh := range shops {
		if sh != nil && sh.IsActive {
			out = append(out, sh)
		}
	}
	return out
}

func activeAds(ads []*domain.Advertisement) []*domain.Advertisement {
	out := make([]*domain.Advertisement, 0, len(ads))
	for _, a := range ads {
		if a != nil && a.IsActive {
			out = append(out, a)
		}
	}
	return out
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	rt := s.routerFor(w, r)
	ctx := r.Context()

	categories, err := s.catalog.ListCategories(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ads, err := s.catalog.ListAdvertisements(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	shops, err := s.catalog.ListShops(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	activeCategories := make([]*domain.Category, 0, len(categories))
	for _, c := range categories {
		if c != nil && c.IsActive {
			activeCategories = append(activeCategories, c)
		}
	}
	featured := make([]*domain.Shop, 0)
	for _, sh := range activeShops(shops) {
		if sh.IsFeatured {
			featured = append(featured, sh)
		}
	}

	s.page(w, r, http.StatusOK, "home", view{
		Title:    "Namma Kumta",
		SignedIn: userID(r) != "",
		Nav:      newNavView(rt),
		Data: struct {
			Categories     []*domain.Category
			Advertisements []*domain.Advertisement
			Featured       []*domain.Shop
		}{activeCategories, activeAds(ads), featured},
	})
}

func (s *Server) handleExplore(w http.ResponseWriter, r *http.Request) {
	rt := s.routerFor(w, r)
	ctx := r.Context()

	categoryID := rt.Param("categoryId")
	title := rt.Param("categoryName")

	if categoryID != "" && title == "" {
		categories, err := s.catalog.ListCategories(ctx)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		for _, c := range categories {
			if c.ItemID() == categoryID {
				title = c.Name
				break
			}
		}
	}
	if title == "" {
		title = "Explore"
	}

	subcategories, err := s.catalog.ListSubcategories(ctx, categoryID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	activeSubs := make([]*domain.Subcategory, 0, len(subcategories))
	for _, sc := range subcategories {
		if sc != nil && sc.IsActive {
			activeSubs = append(activeSubs, sc)
		}
	}

	var shops []*domain.Shop
	if categoryID != "" {
		shops, err = s.catalog.ListShopsByCategory(ctx, categoryID)
	} else {
		shops, err = s.catalog.ListShops(ctx)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.page(w, r, http.StatusOK, "explore", view{
		Title:    title,
		SignedIn: userID(r) != "",
		Nav:      newNavView(rt),
		Data: struct {
			Subcategories []*domain.Subcategory
			Shops         []*domain.Shop
		}{activeSubs, activeShops(shops)},
	})
}

func (s *Server) handleSubcategory(w http.ResponseWriter, r *http.Request) {
	rt := s.routerFor(w, r)
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	sub, err := s.catalog.GetSubcategory(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	shops, err := s.catalog.ListShopsBySubcategory(ctx, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.page(w, r, http.StatusOK, "subcategory", view{
		Title:    sub.Name,
		SignedIn: userID(r) != "",
		Nav:      newNavView(rt),
		Data: struct {
			Subcategory *domain.Subcategory
			Shops       []*domain.Shop
		}{sub, activeShops(shops)},
	})
}

func (s *Server) handleShop(w http.ResponseWriter, r *http.Request) {
	rt := s.routerFor(w, r)
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	shop, err := s.catalog.GetShop(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		// not mirrored yet
		shop, err = s.backend.GetShop(ctx, id)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	pool, err := s.catalog.ListShops(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	more := related.Select(shop, activeShops(pool), domain.GroupSubcategory, s.relatedLimit)

	summary, err := client.Summarize(shop.Description, summaryRunes)
	if err != nil {
		log.WithError(err).WithField("shop", shop.ID).Warn("⚠️ Could not summarize description")
	}

	uid := userID(r)
	fav := favoriteView{ShopID: shop.ID}
	if uid != "" {
		user, err := s.backend.GetUser(ctx, uid)
		if err != nil {
			log.WithError(err).WithField("user", uid).Warn("⚠️ Could not load user")
		}
		fav.Favorite = user.HasFavorite(shop.ID)
	}

	s.page(w, r, http.StatusOK, "shop", view{
		Title:    shop.Name,
		SignedIn: uid != "",
		Nav:      newNavView(rt),
		Data: struct {
			Shop     *domain.Shop
			Summary  client.Summary
			Related  []*domain.Shop
			Favorite favoriteView
		}{shop, summary, more, fav},
	})
}

func (s *Server) handleAd(w http.ResponseWriter, r *http.Request) {
	rt := s.routerFor(w, r)
	ctx := r.Context()

	ad, err := s.catalog.GetAdvertisement(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	pool, err := s.catalog.ListAdvertisements(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.page(w, r, http.StatusOK, "ad", view{
		Title:    ad.Title,
		SignedIn: userID(r) != "",
		Nav:      newNavView(rt),
		Data: struct {
			Ad      *domain.Advertisement
			Related []*domain.Advertisement
		}{ad, related.Select(ad, activeAds(pool), domain.GroupCategory, s.relatedLimit)},
	})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		s.renderError(w, r, http.StatusUnauthorized, "Sign in to see your favorites")
		return
	}
	rt := s.routerFor(w, r)

	shops, err := s.backend.ListFavorites(r.Context(), uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.page(w, r, http.StatusOK, "favorites", view{
		Title:    "Favorites",
		SignedIn: true,
		Nav:      newNavView(rt),
		Data: struct {
			Shops []*domain.Shop
		}{activeShops(shops)},
	})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		s.renderError(w, r, http.StatusUnauthorized, "Sign in to save favorites")
		return
	}
	shopID := chi.URLParam(r, "shopID")

	favorite, err := s.backend.ToggleFavorite(r.Context(), uid, shopID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if isHTMX(r) {
		s.fragment(w, http.StatusOK, "favorite", favoriteView{ShopID: shopID, Favorite: favorite})
		return
	}
	http.Redirect(w, r, shopPath(&domain.Shop{ID: shopID}), http.StatusSeeOther)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		s.renderError(w, r, http.StatusUnauthorized, "Sign in to see your profile")
		return
	}
	rt := s.routerFor(w, r)

	user, err := s.backend.GetUser(r.Context(), uid)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.page(w, r, http.StatusOK, "profile", view{
		Title:    "Profile",
		SignedIn: true,
		Nav:      newNavView(rt),
		Data: struct {
			User *domain.User
		}{user},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("⚠️ Failed to write response")
	}
}

func (s *Server) handleAdminToggle(w http.ResponseWriter, r *http.Request) {
	collection, ok := domain.ParseCollection(chi.URLParam(r, "collection"))
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown collection"})
		return
	}
	flag := chi.URLParam(r, "flag")
	if !collection.HasFlag(flag) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown flag"})
		return
	}
	id := chi.URLParam(r, "id")

	value, err := s.backend.ToggleFlag(r.Context(), collection, id, flag)
	switch {
	case errors.Is(err, client.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	case errors.Is(err, client.ErrCircuitOpen):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	case err != nil:
		log.WithError(err).Errorf("❌ Failed to toggle %s on %s/%s", flag, collection, id)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "backend error"})
		return
	}

	log.Infof("🔁 %s/%s %s=%t", collection, id, flag, value)
	if s.syncer != nil {
		s.syncer.Trigger()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": collection.String(),
		"id":         id,
		"flag":       flag,
		"value":      value,
	})
}

func (s *Server) handleAdminSync(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "sync not configured"})
		return
	}
	s.syncer.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}
