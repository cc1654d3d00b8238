package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"nammakumta/directory/internal/config"
	"nammakumta/directory/internal/domain"
	"nammakumta/directory/internal/domain/task"
	"nammakumta/directory/internal/endpoint"
	"nammakumta/directory/internal/queue"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

type DirectoryClient interface {
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	ListSubcategories(ctx context.Context) ([]*domain.Subcategory, error)
	ListAdvertisements(ctx context.Context) ([]*domain.Advertisement, error)
	GetShopPage(ctx context.Context, pageNumber int) (*domain.ShopPage, error)
	ListShopPagesCh(ctx context.Context, startPage int) (*domain.ShopListing, chan *domain.ShopPage, error)
	GetShop(ctx context.Context, id string) (*domain.Shop, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	ListFavorites(ctx context.Context, userID string) ([]*domain.Shop, error)
	ToggleFavorite(ctx context.Context, userID, shopID string) (bool, error)
	ToggleFlag(ctx context.Context, collection domain.Collection, id, flag string) (bool, error)
	PageSize() int
	Close() error
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type directoryClient struct {
	rl         ratelimit.Limiter
	config     config.BackendConfig
	httpClient *resty.Client
	endpoints  endpoint.Supplier
	queue      queue.Queue

	// Circuit breaker for backend throttling
	circuitBreakerMutex sync.RWMutex
	throttledUntil      time.Time
	circuitBreakerDelay time.Duration
}

func NewDirectoryClient(cfg config.BackendConfig, endpoints endpoint.Supplier, queue queue.Queue) DirectoryClient {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(500*time.Millisecond).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "nammakumta-directory/1.0")

	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	if endpoints == nil {
		endpoints = endpoint.NewStatic(cfg.BaseURL)
	}

	delay := time.Duration(cfg.CircuitBreakerDelay) * time.Second
	if delay <= 0 {
		delay = time.Minute
	}

	return &directoryClient{
		rl:                  rl,
		config:              cfg,
		httpClient:          client,
		endpoints:           endpoints,
		queue:               queue,
		circuitBreakerDelay: delay,
	}
}

func (c *directoryClient) PageSize() int {
	return c.config.PageSize
}

func (c *directoryClient) Close() error {
	return c.httpClient.Close()
}

func (c *directoryClient) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	var out envelope[[]*domain.Category]
	if err := c.do(ctx, http.MethodGet, "/api/categories", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return out.Data, nil
}

func (c *directoryClient) ListSubcategories(ctx context.Context) ([]*domain.Subcategory, error) {
	var out envelope[[]*domain.Subcategory]
	if err := c.do(ctx, http.MethodGet, "/api/subcategories", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list subcategories: %w", err)
	}
	return out.Data, nil
}

func (c *directoryClient) ListAdvertisements(ctx context.Context) ([]*domain.Advertisement, error) {
	var out envelope[[]*domain.Advertisement]
	if err := c.do(ctx, http.MethodGet, "/api/advertisements", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list advertisements: %w", err)
	}
	return out.Data, nil
}

func (c *directoryClient) GetShopPage(ctx context.Context, pageNumber int) (*domain.ShopPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(pageNumber))
	query.Set("limit", strconv.Itoa(c.config.PageSize))

	var page domain.ShopPage
	if err := c.do(ctx, http.MethodGet, "/api/shops", query, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to fetch shop page %d: %w", pageNumber, err)
	}
	if page.PageNumber == 0 {
		page.PageNumber = pageNumber
	}

	log.Debugf("Fetched shop page %d/%d with %d shops", page.PageNumber, page.TotalPages, len(page.Shops))
	return &page, nil
}

// ListShopPagesCh walks the shop listing from startPage. The first page is
// fetched synchronously to learn the page count; the rest are fetched by at
// most MaxWorkers goroutines and delivered on the returned channel, which is
// closed once every page has been attempted. Pages that fail are handed to the
// retry stream instead of being delivered.
func (c *directoryClient) ListShopPagesCh(ctx context.Context, startPage int) (*domain.ShopListing, chan *domain.ShopPage, error) {
	if startPage < 1 {
		startPage = 1
	}

	firstPage, err := c.GetShopPage(ctx, startPage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	listing := &domain.ShopListing{
		TotalItems: firstPage.TotalItems,
		TotalPages: firstPage.TotalPages,
		StartPage:  startPage,
	}

	pagesChan := make(chan *domain.ShopPage, c.config.MaxWorkers+1)
	pagesChan <- firstPage

	if firstPage.TotalPages <= startPage {
		close(pagesChan)
		return listing, pagesChan, nil
	}

	go func() {
		defer close(pagesChan)

		var fetched atomic.Int32
		wg := &sync.WaitGroup{}
		semaphore := make(chan struct{}, c.config.MaxWorkers)

		for pageNum := startPage + 1; pageNum <= firstPage.TotalPages; pageNum++ {
			select {
			case <-ctx.Done():
				wg.Wait()
				return
			case semaphore <- struct{}{}:
			}

			wg.Add(1)
			go func(pageNum int) {
				defer wg.Done()
				defer func() { <-semaphore }()

				page, err := c.GetShopPage(ctx, pageNum)
				if err != nil {
					c.enqueueRetry(ctx, pageNum, err)
					return
				}

				select {
				case pagesChan <- page:
				case <-ctx.Done():
					return
				}

				if n := fetched.Add(1); n%100 == 0 {
					log.Infof("Fetched %d shop pages out of %d", n, firstPage.TotalPages)
				}
			}(pageNum)
		}

		wg.Wait()
	}()

	return listing, pagesChan, nil
}

func (c *directoryClient) enqueueRetry(ctx context.Context, pageNum int, cause error) {
	if c.queue == nil {
		log.Errorf("❌ Failed to fetch shop page %d: %v", pageNum, cause)
		return
	}

	retryTask := &task.PageRetryTask{
		PageNumber: pageNum,
		RetryCount: 0,
		Error:      cause.Error(),
	}
	if _, err := c.queue.AddTask(ctx, retryTask); err != nil {
		log.Errorf("❌ Failed to add shop page %d to retry queue: %v", pageNum, err)
		return
	}
	log.Warnf("🔄 Added shop page %d to retry queue due to fetch failure: %v", pageNum, cause)
}

func (c *directoryClient) GetShop(ctx context.Context, id string) (*domain.Shop, error) {
	var out envelope[*domain.Shop]
	if err := c.do(ctx, http.MethodGet, "/api/shops/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch shop %s: %w", id, err)
	}
	if out.Data == nil {
		return nil, fmt.Errorf("failed to fetch shop %s: %w", id, ErrNotFound)
	}
	return out.Data, nil
}

func (c *directoryClient) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var out envelope[*domain.User]
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, err)
	}
	if out.Data == nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, ErrNotFound)
	}
	return out.Data, nil
}

func (c *directoryClient) ListFavorites(ctx context.Context, userID string) ([]*domain.Shop, error) {
	var out envelope[[]*domain.Shop]
	path := "/api/users/" + url.PathEscape(userID) + "/favorites"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to list favorites for %s: %w", userID, err)
	}
	return out.Data, nil
}

func (c *directoryClient) ToggleFavorite(ctx context.Context, userID, shopID string) (bool, error) {
	var out envelope[struct {
		Favorite bool `json:"favorite"`
	}]
	path := "/api/users/" + url.PathEscape(userID) + "/favorites/" + url.PathEscape(shopID)
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &out); err != nil {
		return false, fmt.Errorf("failed to toggle favorite %s for %s: %w", shopID, userID, err)
	}
	return out.Data.Favorite, nil
}

func (c *directoryClient) ToggleFlag(ctx context.Context, collection domain.Collection, id, flag string) (bool, error) {
	if !collection.HasFlag(flag) {
		return false, fmt.Errorf("flag %q is not toggleable on %s", flag, collection)
	}

	var out envelope[struct {
		Value bool `json:"value"`
	}]
	path := fmt.Sprintf("/api/%s/%s/toggle/%s", collection, url.PathEscape(id), url.PathEscape(flag))
	if err := c.do(ctx, http.MethodPatch, path, nil, nil, &out); err != nil {
		return false, fmt.Errorf("failed to toggle %s on %s %s: %w", flag, collection, id, err)
	}

	log.Infof("🔧 Toggled %s on %s %s to %v", flag, collection.GetCollectionName(), id, out.Data.Value)
	return out.Data.Value, nil
}

func (c *directoryClient) isCircuitBreakerOpen() bool {
	c.circuitBreakerMutex.RLock()
	now := time.Now()
	wasOpen := now.Before(c.throttledUntil)
	wasTriggered := !c.throttledUntil.IsZero()
	c.circuitBreakerMutex.RUnlock()

	if !wasOpen && wasTriggered {
		c.circuitBreakerMutex.Lock()
		// Double-check after acquiring write lock
		if !c.throttledUntil.IsZero() && now.After(c.throttledUntil) {
			c.throttledUntil = time.Time{}
			log.Infof("✅ Circuit breaker closed - backend requests are allowed again")
		}
		c.circuitBreakerMutex.Unlock()
	}

	return wasOpen
}

func (c *directoryClient) triggerCircuitBreaker() {
	c.circuitBreakerMutex.Lock()
	defer c.circuitBreakerMutex.Unlock()

	c.throttledUntil = time.Now().Add(c.circuitBreakerDelay)
	log.Warnf("🚫 Backend is throttling us, requests disabled until %v",
		c.throttledUntil.Format("15:04:05"))
}

func (c *directoryClient) getRemainingCircuitBreakerTime() time.Duration {
	c.circuitBreakerMutex.RLock()
	defer c.circuitBreakerMutex.RUnlock()

	remaining := time.Until(c.throttledUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// do sends one JSON request. A transport error or 5xx is retried once on the
// next endpoint when mirrors are configured.
func (c *directoryClient) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if c.isCircuitBreakerOpen() {
		remaining := c.getRemainingCircuitBreakerTime()
		return fmt.Errorf("%w - requests disabled for %v more", ErrCircuitOpen, remaining.Round(time.Second))
	}

	attempts := 1
	if c.endpoints.Len() > 1 {
		attempts = 2
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		base := c.endpoints.Get()
		if attempt > 0 {
			log.Infof("🔄 Retrying %s %s on %s", method, path, base)
		}

		retryable, err := c.send(ctx, base, method, path, query, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (c *directoryClient) send(ctx context.Context, base, method, path string, query url.Values, body any, out any) (bool, error) {
	c.rl.Take()

	req := c.httpClient.R().
		SetContext(ctx).
		SetResult(out)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, base+path)
	if err != nil {
		if ctx.Err() != nil {
			return false, fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return true, fmt.Errorf("failed to call backend: %w", err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return false, ErrNotFound
	case code == http.StatusTooManyRequests:
		c.triggerCircuitBreaker()
		return false, fmt.Errorf("%w - backend answered %d", ErrCircuitOpen, code)
	case code >= 500:
		return true, fmt.Errorf("HTTP error: %d %s", code, resp.Status())
	case resp.IsError():
		return false, fmt.Errorf("HTTP error: %d %s", code, resp.Status())
	}

	return false, nil
}
