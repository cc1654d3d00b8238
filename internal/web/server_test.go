package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nammakumta/directory/internal/client"
	"nammakumta/directory/internal/config"
	"nammakumta/directory/internal/domain"
	"nammakumta/directory/internal/repository"
	"nammakumta/directory/internal/state"
)

const testSession = "6f1c7a58-1d7e-4a43-9a1c-0f2f0a3e5b11"

type fakeCatalog struct {
	categories    []*domain.Category
	subcategories []*domain.Subcategory
	shops         []*domain.Shop
	ads           []*domain.Advertisement
}

func (c *fakeCatalog) ListCategories(context.Context) ([]*domain.Category, error) {
	return c.categories, nil
}

func (c *fakeCatalog) ListSubcategories(_ context.Context, categoryID string) ([]*domain.Subcategory, error) {
	var out []*domain.Subcategory
	for _, sc := range c.subcategories {
		if categoryID == "" || sc.CategoryID.Key() == categoryID {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (c *fakeCatalog) GetSubcategory(_ context.Context, id string) (*domain.Subcategory, error) {
	for _, sc := range c.subcategories {
		if sc.ID == id {
			return sc, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (c *fakeCatalog) ListShops(context.Context) ([]*domain.Shop, error) {
	return c.shops, nil
}

func (c *fakeCatalog) ListShopsByCategory(_ context.Context, categoryID string) ([]*domain.Shop, error) {
	var out []*domain.Shop
	for _, s := range c.shops {
		if s.CategoryID.Key() == categoryID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *fakeCatalog) ListShopsBySubcategory(_ context.Context, subcategoryID string) ([]*domain.Shop, error) {
	var out []*domain.Shop
	for _, s := range c.shops {
		if s.SubcategoryID.Key() == subcategoryID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (c *fakeCatalog) GetShop(_ context.Context, id string) (*domain.Shop, error) {
	for _, s := range c.shops {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (c *fakeCatalog) ListAdvertisements(context.Context) ([]*domain.Advertisement, error) {
	return c.ads, nil
}

func (c *fakeCatalog) GetAdvertisement(_ context.Context, id string) (*domain.Advertisement, error) {
	for _, a := range c.ads {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeBackend struct {
	mu      sync.Mutex
	shops   map[string]*domain.Shop
	users   map[string]*domain.User
	toggled []string
}

func (b *fakeBackend) GetShop(_ context.Context, id string) (*domain.Shop, error) {
	if s, ok := b.shops[id]; ok {
		return s, nil
	}
	return nil, client.ErrNotFound
}

func (b *fakeBackend) GetUser(_ context.Context, id string) (*domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u, ok := b.users[id]; ok {
		return u, nil
	}
	return nil, client.ErrNotFound
}

func (b *fakeBackend) ListFavorites(_ context.Context, userID string) ([]*domain.Shop, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[userID]
	if !ok {
		return nil, client.ErrNotFound
	}
	out := make([]*domain.Shop, 0, len(u.Favorites))
	for _, id := range u.Favorites {
		out = append(out, &domain.Shop{ID: id, Name: "Shop " + id, IsActive: true})
	}
	return out, nil
}

func (b *fakeBackend) ToggleFavorite(_ context.Context, userID, shopID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[userID]
	if !ok {
		return false, client.ErrNotFound
	}
	for i, id := range u.Favorites {
		if id == shopID {
			u.Favorites = append(u.Favorites[:i], u.Favorites[i+1:]...)
			return false, nil
		}
	}
	u.Favorites = append(u.Favorites, shopID)
	return true, nil
}

func (b *fakeBackend) ToggleFlag(_ context.Context, collection domain.Collection, id, flag string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toggled = append(b.toggled, collection.String()+"/"+id+"/"+flag)
	return true, nil
}

type fakeSyncer struct {
	mu       sync.Mutex
	triggers int
}

func (s *fakeSyncer) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers++
}

type fixture struct {
	server  *Server
	catalog *fakeCatalog
	backend *fakeBackend
	syncer  *fakeSyncer
	nav     *state.MemoryNavigationStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog := &fakeCatalog{
		categories: []*domain.Category{
			{ID: "c1", Name: "Food", IsActive: true},
			{ID: "c2", Name: "Tailors", IsActive: false},
		},
		subcategories: []*domain.Subcategory{
			{ID: "sc1", Name: "Bakeries", CategoryID: domain.NewRef("c1"), IsActive: true},
			{ID: "sc2", Name: "Hotels", CategoryID: domain.NewRef("c1"), IsActive: true},
		},
		shops: []*domain.Shop{
			{
				ID: "s1", Name: "Kamat Bakery", IsActive: true, IsFeatured: true,
				Description:   `<p>Fresh <b>bread</b> daily</p><script>alert(1)</script>`,
				CategoryID:    domain.NewRef("c1"),
				SubcategoryID: domain.NewRef("sc1"),
			},
			{ID: "s2", Name: "Iyengar Bakery", IsActive: true, CategoryID: domain.NewRef("c1"), SubcategoryID: domain.NewRef("sc1")},
			{ID: "s3", Name: "Udupi Hotel", IsActive: true, CategoryID: domain.NewRef("c1"), SubcategoryID: domain.NewRef("sc2")},
			{ID: "s4", Name: "Closed Bakery", IsActive: false, CategoryID: domain.NewRef("c1"), SubcategoryID: domain.NewRef("sc1")},
		},
		ads: []*domain.Advertisement{
			{ID: "a1", Title: "Diwali sale", CategoryID: domain.NewRef("c1"), IsActive: true},
			{ID: "a2", Title: "Monsoon offers", CategoryID: domain.NewRef("c1"), IsActive: true},
			{ID: "a3", Title: "Wedding suits", CategoryID: domain.NewRef("c2"), IsActive: true},
		},
	}
	backend := &fakeBackend{
		shops: map[string]*domain.Shop{
			"s9": {ID: "s9", Name: "New Sweets", IsActive: true, SubcategoryID: domain.NewRef("sc1")},
		},
		users: map[string]*domain.User{
			"u1": {ID: "u1", Name: "Asha", Email: "asha@example.com", Favorites: []string{"s1"}},
		},
	}
	syncer := &fakeSyncer{}
	nav := state.NewMemoryNavigationStore()

	srv, err := NewServer(
		config.ServerConfig{Host: "127.0.0.1", Port: 0, AdminToken: "secret", RelatedLimit: 8},
		config.NavigationConfig{MaxEntries: 50, SessionTTL: 3600},
		catalog, backend, syncer, nav,
	)
	require.NoError(t, err)

	return &fixture{server: srv, catalog: catalog, backend: backend, syncer: syncer, nav: nav}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func withSession(req *http.Request) *http.Request {
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: testSession})
	return req
}

func asUser(req *http.Request, id string) *http.Request {
	req.AddCookie(&http.Cookie{Name: userCookieName, Value: id})
	return req
}

func asHTMX(req *http.Request, current string) *http.Request {
	req.Header.Set("HX-Request", "true")
	if current != "" {
		req.Header.Set("HX-Current-URL", current)
	}
	return req
}

func document(t *testing.T, rec *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	return doc
}

func dataIDs(doc *goquery.Document, selector string) []string {
	var ids []string
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		ids = append(ids, s.AttrOr("data-id", ""))
	})
	return ids
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSessionCookieIssuedOnce(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	rec = f.do(withSession(httptest.NewRequest(http.MethodGet, "/", nil)))
	assert.Empty(t, rec.Result().Cookies())
}

func TestHomeListsActiveCategoriesAdsAndFeaturedShops(t *testing.T) {
	f := newFixture(t)

	rec := f.do(withSession(httptest.NewRequest(http.MethodGet, "/", nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, []string{"c1"}, dataIDs(doc, "li.category"))
	assert.Equal(t, []string{"a1", "a2", "a3"}, dataIDs(doc, ".advertisements li.ad-card"))
	assert.Equal(t, []string{"s1"}, dataIDs(doc, ".featured li.shop-card"))

	link := doc.Find("li.category a").First()
	assert.Equal(t, "/explore?categoryId=c1&categoryName=Food", link.AttrOr("href", ""))
	assert.Equal(t, "/nav/push?to=%2Fexplore%3FcategoryId%3Dc1%26categoryName%3DFood", link.AttrOr("hx-post", ""))
}

func TestExploreReadsCategoryFromQuery(t *testing.T) {
	f := newFixture(t)

	rec := f.do(withSession(httptest.NewRequest(http.MethodGet, "/explore?categoryId=c1&categoryName=Food", nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, "Food", strings.TrimSpace(doc.Find("main h1").Text()))
	assert.Equal(t, []string{"sc1", "sc2"}, dataIDs(doc, "li.subcategory"))
	assert.Equal(t, []string{"s1", "s2", "s3"}, dataIDs(doc, ".results li.shop-card"))
}

func TestExploreLooksUpMissingCategoryName(t *testing.T) {
	f := newFixture(t)

	rec := f.do(withSession(httptest.NewRequest(http.MethodGet, "/explore?categoryId=c1", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Food", strings.TrimSpace(document(t, rec).Find("main h1").Text()))
}

func TestSubcategoryPage(t *testing.T) {
	f := newFixture(t)

	rec := f.do(withSession(httptest.NewRequest(http.MethodGet, "/subcategories/sc1", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s1", "s2"}, dataIDs(document(t, rec), "li.shop-card"))

	rec = f.do(withSession(httptest.NewRequest(http.MethodGet, "/subcategories/nope", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShopPageShowsSanitizedDescriptionAndRelatedShops(t *testing.T) {
	f := newFixture(t)

	rec := f.do(withSession(httptest.NewRequest(http.MethodGet, "/shops/s1", nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, "Kamat Bakery", strings.TrimSpace(doc.Find("main h1").Text()))
	assert.Equal(t, 1, doc.Find(".description b").Length())
	assert.NotContains(t, rec.Body.String(), "alert(1)")
	assert.Equal(t, []string{"s2"}, dataIDs(doc, ".related li.shop-card"))
	assert.Equal(t, 0, doc.Find("form.favorite").Length(), "anonymous visitors get no favorite button")
}

func TestShopPageFallsBackToOtherShopsWhenGroupIsEmpty(t *testing.T) {
	f := newFixture(t)

	rec := f.do(withSession(httptest.NewRequest(http.MethodGet, "/shops/s3", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s1", "s2"}, dataIDs(document(t, rec), ".related li.shop-card"))
}

func TestShopPageFetchesUnmirroredShopFromBackend(t *testing.T) {
	f := newFixture(t)

	rec := f.do(withSession(httptest.NewRequest(http.MethodGet, "/shops/s9", nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	doc := document(t, rec)
	assert.Equal(t, "New Sweets", strings.TrimSpace(doc.Find("main h1").Text()))
	assert.Equal(t, []string{"s1", "s2"}, dataIDs(doc, ".related li.shop-card"))

	rec = f.do(withSession(httptest.NewRequest(http.MethodGet, "/shops/missing", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShopPageShowsFavoriteStateForSignedInUser(t *testing.T) {
	f := newFixture(t)

	rec := f.do(asUser(withSession(httptest.NewRequest(http.MethodGet, "/shops/s1", nil)), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", document(t, rec).Find("form.favorite button").AttrOr("data-favorite", ""))
}

func TestAdPageRelatesByCategory(t *testing.T) {
	f := newFixture(t)

	rec := f.do(withSession(httptest.NewRequest(http.MethodGet, "/ads/a1", nil)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"a2"}, dataIDs(document(t, rec), ".related li.ad-card"))
}

func TestFavoritesAndProfileRequireUser(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/favorites", "/profile"} {
		rec := f.do(withSession(httptest.NewRequest(http.MethodGet, path, nil)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := f.do(withSession(httptest.NewRequest(http.MethodPost, "/favorites/s1/toggle", nil)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUnauthorizedPagesStayOutOfHistory(t *testing.T) {
	f := newFixture(t)

	f.do(withSession(httptest.NewRequest(http.MethodGet, "/", nil)))
	for _, path := range []string{"/favorites", "/profile"} {
		rec := f.do(withSession(httptest.NewRequest(http.MethodGet, path, nil)))
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	st := f.navState(t)
	assert.Equal(t, []string{"/"}, paths(st))
	assert.Equal(t, "/", st.Location)
}

func TestFavoritesAndProfileForSignedInUser(t *testing.T) {
	f := newFixture(t)

	rec := f.do(asUser(withSession(httptest.NewRequest(http.MethodGet, "/favorites", nil)), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s1"}, dataIDs(document(t, rec), "li.shop-card"))

	rec = f.do(asUser(withSession(httptest.NewRequest(http.MethodGet, "/profile", nil)), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	doc := document(t, rec)
	assert.Equal(t, "Asha", doc.Find("dd.name").Text())
	assert.Equal(t, "1", doc.Find("dd.favorites").Text())
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t)

	rec := f.do(asHTMX(asUser(withSession(httptest.NewRequest(http.MethodPost, "/favorites/s2/toggle", nil)), "u1"), ""))
	require.Equal(t, http.StatusOK, rec.Code)
	doc := document(t, rec)
	assert.Equal(t, "true", doc.Find("form.favorite button").AttrOr("data-favorite", ""))
	assert.Equal(t, 0, doc.Find("html body header").Length(), "htmx gets the fragment only")

	rec = f.do(asUser(withSession(httptest.NewRequest(http.MethodPost, "/favorites/s2/toggle", nil)), "u1"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/shops/s2", rec.Header().Get("Location"))
	assert.Equal(t, []string{"s1"}, f.backend.users["u1"].Favorites)
}

func TestAdminRequiresBearerToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/admin/sync", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
	assert.Zero(t, f.syncer.triggers)
}

func TestAdminToggleFlag(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/shops/s1/toggle/isFeatured", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["value"])
	assert.Equal(t, []string{"shops/s1/isFeatured"}, f.backend.toggled)
	assert.Equal(t, 1, f.syncer.triggers)

	req = httptest.NewRequest(http.MethodPost, "/admin/users/u1/toggle/isFeatured", nil)
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusBadRequest, f.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/admin/widgets/w1/toggle/isActive", nil)
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusNotFound, f.do(req).Code)
}

func TestAdminSyncTriggers(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := f.do(req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, f.syncer.triggers)
}
