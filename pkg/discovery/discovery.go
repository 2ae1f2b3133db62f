// Package discovery finds radios reachable over Bluetooth, serial and the
// local network.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/kabili207/mesh-web-client/pkg/transport"
)

// Candidate is a radio that can be connected to.
type Candidate struct {
	Kind     transport.Kind    `json:"kind"`
	Address  string            `json:"address"`
	Name     string            `json:"name,omitempty"`
	RSSI     int16             `json:"rssi,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
	LastSeen time.Time         `json:"last_seen"`
}

func (c Candidate) key() string {
	return string(c.Kind) + "|" + c.Address
}

type Scanner interface {
	Kind() transport.Kind
	Scan(ctx context.Context) ([]Candidate, error)
}

// Service runs scanners and remembers what they found for a while, so a
// radio that misses one scan stays listed.
type Service struct {
	scanners []Scanner
	log      *slog.Logger
	cache    *ttlcache.Cache[string, Candidate]
	now      func() time.Time

	scanMu sync.Mutex
}

func NewService(logger *slog.Logger, ttl time.Duration, scanners ...Scanner) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	cache := ttlcache.New[string, Candidate](
		ttlcache.WithTTL[string, Candidate](ttl),
	)
	go cache.Start()
	return &Service{
		scanners: scanners,
		log:      logger.With("component", "discovery"),
		cache:    cache,
		now:      time.Now,
	}
}

// Scan runs every scanner concurrently and returns all known candidates.
// Scanner failures are logged and joined into the returned error; results
// from the scanners that worked are still returned.
func (s *Service) Scan(ctx context.Context) ([]Candidate, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, sc := range s.scanners {
		wg.Add(1)
		go func(sc Scanner) {
			defer wg.Done()
			found, err := sc.Scan(ctx)
			if err != nil {
				s.log.Warn("scan failed", "kind", string(sc.Kind()), "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", sc.Kind(), err))
				mu.Unlock()
				return
			}
			for _, c := range found {
				if c.LastSeen.IsZero() {
					c.LastSeen = s.now()
				}
				s.cache.Set(c.key(), c, ttlcache.DefaultTTL)
			}
			s.log.Debug("scan finished", "kind", string(sc.Kind()), "found", len(found))
		}(sc)
	}
	wg.Wait()

	return s.Known(), errors.Join(errs...)
}

// Known returns the cached candidates ordered by kind and address.
func (s *Service) Known() []Candidate {
	items := s.cache.Items()
	out := make([]Candidate, 0, len(items))
	for _, item := range items {
		if item.IsExpired() {
			continue
		}
		out = append(out, item.Value())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Address < out[j].Address
	})
	return out
}

// Forget drops a candidate, e.g. after a failed connection attempt.
func (s *Service) Forget(kind transport.Kind, address string) {
	s.cache.Delete(Candidate{Kind: kind, Address: address}.key())
}

func (s *Service) Close() {
	s.cache.Stop()
}
