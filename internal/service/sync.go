package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nammakumta/directory/internal/client"
	"nammakumta/directory/internal/domain"
	"nammakumta/directory/internal/domain/task"
	"nammakumta/directory/internal/queue"
	"nammakumta/directory/internal/repository"
	"nammakumta/directory/internal/state"

	"golang.org/x/sync/errgroup"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Service mirrors the backend directory into the local repository.
type Service struct {
	repository   repository.DirectoryRepository
	client       client.DirectoryClient
	queue        queue.Queue
	syncState    state.SyncState
	saveInterval int
	groupName    string
	minIdleTime  time.Duration
	maxRetries   int

	running sync.Mutex
	trigger chan struct{}
}

func NewService(
	repository repository.DirectoryRepository,
	client client.DirectoryClient,
	queue queue.Queue,
	syncState state.SyncState,
	saveInterval int,
	groupName string,
	minIdleTime int,
	maxRetries int,
) *Service {
	idle := time.Duration(minIdleTime) * time.Second
	if idle <= 0 {
		idle = 2 * time.Minute
	}

	return &Service{
		repository:   repository,
		client:       client,
		queue:        queue,
		syncState:    syncState,
		saveInterval: saveInterval,
		groupName:    groupName,
		minIdleTime:  idle,
		maxRetries:   maxRetries,
		trigger:      make(chan struct{}, 1),
	}
}

// Trigger asks the scheduler for a sync as soon as possible. Requests made
// while one is already pending are merged.
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// RunScheduler syncs once at start, then on every tick or trigger until ctx
// is done.
func (s *Service) RunScheduler(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		case <-s.trigger:
			s.runOnce(ctx)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	if err := s.SyncAll(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("❌ Sync failed: %v", err)
	}
}

// SyncAll refreshes reference collections and enqueues every shop page.
func (s *Service) SyncAll(ctx context.Context) error {
	if !s.running.TryLock() {
		log.Info("⏭️ Sync already running, skipping")
		return nil
	}
	defer s.running.Unlock()

	started := time.Now()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.syncReference(ctx)
	})
	g.Go(func() error {
		return s.syncShops(ctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Infof("✅ Directory sync finished in %v", time.Since(started).Round(time.Millisecond))
	return nil
}

func (s *Service) syncReference(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		categories, err := s.client.ListCategories(ctx)
		if err != nil {
			return err
		}
		if err := s.repository.SaveCategories(ctx, categories); err != nil {
			return err
		}
		log.Infof("✅ Synced %d categories", len(categories))
		return nil
	})

	g.Go(func() error {
		subcategories, err := s.client.ListSubcategories(ctx)
		if err != nil {
			return err
		}
		if err := s.repository.SaveSubcategories(ctx, subcategories); err != nil {
			return err
		}
		log.Infof("✅ Synced %d subcategories", len(subcategories))
		return nil
	})

	g.Go(func() error {
		ads, err := s.client.ListAdvertisements(ctx)
		if err != nil {
			return err
		}
		if err := s.repository.SaveAdvertisements(ctx, ads); err != nil {
			return err
		}
		log.Infof("✅ Synced %d advertisements", len(ads))
		return nil
	})

	return g.Wait()
}

func (s *Service) syncShops(ctx context.Context) error {
	collection := domain.CollectionShops

	lastSyncedPage, err := s.syncState.GetLastSyncedPage(ctx, collection)
	if err != nil {
		log.Errorf("Failed to get last synced page: %v", err)
		return err
	}

	startPage := max(1, lastSyncedPage)
	if startPage != 1 {
		log.Infof("🔄 Continue shop sync from page %d", startPage)
	}

	listing, pages, err := s.client.ListShopPagesCh(ctx, startPage)
	if err != nil {
		log.Errorf("❌ Failed to list shop pages: %v", err)
		return err
	}

	countPages := 0
	for page := range pages {
		countPages++

		if countPages%s.saveInterval == 0 {
			// pages arrive out of order; stay behind the window still in flight
			if err := s.syncState.SetLastSyncedPage(ctx, collection, max(0, page.PageNumber-s.saveInterval)); err != nil {
				log.Warnf("⚠️ Failed to save sync progress: %v", err)
			}
		}

		_, err := s.queue.AddTask(ctx, &task.ShopPageTask{
			PageNumber: page.PageNumber,
			PageSize:   s.client.PageSize(),
			Shops:      page.Shops,
		})
		if err != nil {
			log.Errorf("❌ Failed to add task for shop page %d: %v", page.PageNumber, err)
			return err
		}
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	log.Infof("✅ Enqueued %d shop pages (%d shops total)", countPages, listing.TotalItems)

	// a finished walk starts from the first page next time
	return s.syncState.SetLastSyncedPage(ctx, collection, 0)
}

func (s *Service) RunWorkers(ctx context.Context, numWorkers int) error {
	var wg sync.WaitGroup

	s.runWorkersForStream(ctx, &wg, numWorkers, queue.StreamName(task.TypeShopPage), "main")
	s.runWorkersForStream(ctx, &wg, max(1, numWorkers/2), queue.StreamName(task.TypePageRetry), "retry")

	wg.Wait()
	return nil
}

func (s *Service) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, streamName, workerType string) {
	// Auto-claimer for this stream
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.minIdleTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				consumer := fmt.Sprintf("autoclaimer-%s", workerType)
				claimedMessages, err := s.queue.AutoClaim(ctx, s.groupName, consumer, streamName, s.minIdleTime)
				if err != nil {
					log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
					continue
				}
				if len(claimedMessages) > 0 {
					log.Infof("🔄 Auto-claimed %d messages from %s stream", len(claimedMessages), workerType)
					for _, msg := range claimedMessages {
						if err := s.processMessage(ctx, &msg); err != nil {
							log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("%s-worker-%d", workerType, workerID)
			log.Infof("🚀 Starting %s worker %d as consumer %s", workerType, workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 %s worker %d stopping", workerType, workerID)
					return
				default:
				}

				msg, err := s.queue.GetTask(ctx, s.groupName, consumer, streamName)
				if err != nil {
					if ctx.Err() != nil {
						continue
					}
					log.Errorf("❌ Failed to get task from %s: %v", streamName, err)
					select {
					case <-ctx.Done():
					case <-time.After(time.Second):
					}
					continue
				}

				if msg != nil {
					if err := s.processMessage(ctx, msg); err != nil {
						log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
					}
				}
			}
		}(i + 1)
	}
}

func (s *Service) processMessage(ctx context.Context, msg *redis.XMessage) error {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok {
		return fmt.Errorf("invalid task type in message %s", msg.ID)
	}

	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return fmt.Errorf("invalid task data in message %s", msg.ID)
	}

	switch taskType {
	case task.TypeShopPage:
		pageTask, err := task.UnmarshalTask[*task.ShopPageTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal shop page task data: %w", err)
		}
		if pageTask == nil {
			return fmt.Errorf("empty shop page task in message %s", msg.ID)
		}

		if err := s.saveShopPage(ctx, pageTask); err != nil {
			retryTask := &task.PageRetryTask{
				PageNumber: pageTask.PageNumber,
				RetryCount: pageTask.RetryCount,
				Error:      err.Error(),
			}

			if _, addErr := s.queue.AddTask(ctx, retryTask); addErr != nil {
				return fmt.Errorf("failed to add retry task for page %d: %w", pageTask.PageNumber, addErr)
			}
			log.Warnf("🔄 Added shop page %d to retry queue due to error: %v", pageTask.PageNumber, err)
		}

	case task.TypePageRetry:
		retryTask, err := task.UnmarshalTask[*task.PageRetryTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal retry task data: %w", err)
		}
		if retryTask == nil {
			return fmt.Errorf("empty retry task in message %s", msg.ID)
		}

		if err := s.retryPage(ctx, retryTask); err != nil {
			return fmt.Errorf("failed to retry page: %w", err)
		}

	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}

	if err := s.queue.AckTask(ctx, queue.StreamName(taskType), s.groupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	return nil
}

func (s *Service) saveShopPage(ctx context.Context, pageTask *task.ShopPageTask) error {
	if err := s.repository.SaveShops(ctx, pageTask.Offset(), pageTask.Shops); err != nil {
		return err
	}
	log.Debugf("Saved %d shops from page %d", len(pageTask.Shops), pageTask.PageNumber)
	return nil
}

func (s *Service) retryPage(ctx context.Context, retryTask *task.PageRetryTask) error {
	retryTask.RetryCount++

	if retryTask.RetryCount > s.maxRetries {
		log.Errorf("❌ Giving up on shop page %d after %d attempts: %s",
			retryTask.PageNumber, retryTask.RetryCount-1, retryTask.Error)
		return nil
	}

	log.Infof("🔄 Retrying shop page %d (attempt %d)", retryTask.PageNumber, retryTask.RetryCount)

	page, err := s.client.GetShopPage(ctx, retryTask.PageNumber)
	if err != nil {
		newRetryTask := &task.PageRetryTask{
			PageNumber: retryTask.PageNumber,
			RetryCount: retryTask.RetryCount,
			Error:      err.Error(),
		}

		if _, addErr := s.queue.AddTask(ctx, newRetryTask); addErr != nil {
			log.Errorf("❌ Failed to re-add retry task for page %d: %v", retryTask.PageNumber, addErr)
			return addErr
		}

		log.Warnf("🔄 Shop page %d failed again, will retry (attempt %d): %v",
			retryTask.PageNumber, retryTask.RetryCount, err)
		return nil
	}

	pageTask := &task.ShopPageTask{
		PageNumber: page.PageNumber,
		PageSize:   s.client.PageSize(),
		Shops:      page.Shops,
		RetryCount: retryTask.RetryCount,
	}

	if _, err := s.queue.AddTask(ctx, pageTask); err != nil {
		log.Errorf("❌ Failed to add recovered page task for page %d: %v", retryTask.PageNumber, err)
		return err
	}

	log.Infof("✅ Recovered shop page %d after %d attempts", retryTask.PageNumber, retryTask.RetryCount)
	return nil
}
