package endpoint

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// Supplier hands out backend base URLs in round-robin order
type Supplier interface {
	Get() string
	Len() int
}

type supplier struct {
	endpoints []string
	current   int
	mutex     sync.Mutex
}

// NewSupplier health-checks the primary base URL and its mirrors in parallel
// and keeps the ones that answer. When none answer the primary is kept anyway
// so the process can start and recover once the backend is back.
func NewSupplier(ctx context.Context, primary string, mirrors []string) Supplier {
	candidates := dedupe(append([]string{primary}, mirrors...))

	healthy := make([]bool, len(candidates))

	log.Infof("🔄 Checking %d backend endpoints...", len(candidates))

	semaphore := make(chan struct{}, 8)

	var wg sync.WaitGroup

	for i, base := range candidates {
		wg.Add(1)

		go func(index int, base string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if isHealthy(ctx, base) {
				healthy[index] = true
				log.Infof("✅ Backend %s is healthy", base)
			} else {
				log.Warnf("❌ Backend %s failed its health check, skipping", base)
			}
		}(i, base)
	}

	wg.Wait()

	// keep configuration order so the primary stays first
	endpoints := make([]string, 0, len(candidates))
	for i, base := range candidates {
		if healthy[i] {
			endpoints = append(endpoints, base)
		}
	}

	if len(endpoints) == 0 {
		log.Warnf("⚠️ No backend endpoint is healthy, falling back to %s", candidates[0])
		endpoints = candidates[:1]
	}

	log.Infof("✅ Endpoint supplier initialized with %d of %d endpoints", len(endpoints), len(candidates))

	return &supplier{endpoints: endpoints}
}

// NewStatic builds a supplier without health checks.
func NewStatic(endpoints ...string) Supplier {
	return &supplier{endpoints: dedupe(endpoints)}
}

// Get returns the next endpoint in round-robin fashion
func (s *supplier) Get() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.endpoints) == 0 {
		return ""
	}

	endpoint := s.endpoints[s.current]
	s.current = (s.current + 1) % len(s.endpoints)

	return endpoint
}

func (s *supplier) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.endpoints)
}

// isHealthy tests if a backend answers its health endpoint
func isHealthy(ctx context.Context, base string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0)
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(base + "/health")

	if err != nil {
		log.Debugf("Health check failed for %s: %v", base, err)
		return false
	}

	if resp.IsError() {
		log.Debugf("Health check failed for %s with status: %s", base, resp.Status())
		return false
	}

	return true
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimRight(strings.TrimSpace(s), "/")
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
