package services

import (
	"context"
	"sync"
	"time"

	"github.com/lnurl-gateway/backend/internal/apperr"
	"github.com/lnurl-gateway/backend/internal/chain"
	"github.com/lnurl-gateway/backend/internal/config"
	"github.com/lnurl-gateway/backend/internal/lightning"
	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"

	healthKey = "health"
)

type LightningHealth struct {
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
	Identity string `json:"identity,omitempty"`
	Synced   bool   `json:"synced"`
}

type ChainHealth struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
	Blocks int64  `json:"blocks,omitempty"`
}

type HealthReport struct {
	Status    string          `json:"status"`
	Lightning LightningHealth `json:"lightning"`
	Chain     ChainHealth     `json:"chain"`
	CheckedAt time.Time       `json:"checked_at"`
}

type HealthService struct {
	ln      lightning.Client
	chain   chain.Client
	cache   *cache.Cache
	metrics *metrics.Metrics
	cfg     *config.Config
	log     *zap.Logger
}

func NewHealthService(ln lightning.Client, ch chain.Client, m *metrics.Metrics, cfg *config.Config, log *zap.Logger) *HealthService {
	return &HealthService{
		ln:      ln,
		chain:   ch,
		cache:   cache.New(cfg.HealthCacheTTL, 2*cfg.HealthCacheTTL),
		metrics: m,
		cfg:     cfg,
		log:     log,
	}
}

// Check queries both nodes in parallel. The report is cached so that a busy
// load balancer does not turn into node traffic.
func (s *HealthService) Check(ctx context.Context) *HealthReport {
	if v, ok := s.cache.Get(healthKey); ok {
		if r, ok := v.(*HealthReport); ok {
			return r
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.NodeTimeout)
	defer cancel()

	r := &HealthReport{CheckedAt: time.Now().UTC()}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		started := time.Now()
		info, err := s.ln.GetInfo(ctx)
		s.metrics.NodeCall("get_info", started, err)
		if err != nil {
			r.Lightning.Error = err.Error()
			return
		}
		r.Lightning.OK = true
		r.Lightning.Identity = info.IdentityPubkey
		r.Lightning.Synced = info.SyncedToChain
	}()
	go func() {
		defer wg.Done()
		started := time.Now()
		blocks, err := s.chain.GetBlockCount(ctx)
		s.metrics.NodeCall("get_block_count", started, err)
		if err != nil {
			r.Chain.Error = err.Error()
			return
		}
		r.Chain.OK = true
		r.Chain.Blocks = blocks
	}()
	wg.Wait()

	r.Status = HealthOK
	if !r.Lightning.OK || !r.Chain.OK {
		r.Status = HealthDegraded
		s.log.Warn("health degraded",
			zap.String("lightning_error", r.Lightning.Error),
			zap.String("chain_error", r.Chain.Error),
		)
	}

	// go-cache treats a zero TTL as "never expires"
	if s.cfg.HealthCacheTTL > 0 {
		s.cache.Set(healthKey, r, cache.DefaultExpiration)
	}
	return r
}

// NodeAddress returns a fresh on-chain address of the Lightning node wallet.
func (s *HealthService) NodeAddress(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NodeTimeout)
	defer cancel()

	started := time.Now()
	addr, err := s.ln.NewAddress(ctx)
	s.metrics.NodeCall("new_address", started, err)
	if err != nil {
		return "", apperr.Upstream("Failed to get node address", err)
	}
	return addr, nil
}
