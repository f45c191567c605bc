package store

import (
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Meesho/BharatMLStack/wavering/internal/wave"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

var (
	ErrSyntax    = errors.New("syntax error")
	ErrWrongType = errors.New("operation against a key holding the wrong kind of value")
	ErrNoKey     = errors.New("no such key")
	ErrTooBig    = errors.New("increment would overflow the wave bound")
	ErrOOM       = errors.New("out of memory")
	ErrInternal  = errors.New("internal error")

	ErrNumShardLessThan1 = errors.New("num shards must be greater than 0")

	Seed = strconv.Itoa(int(time.Now().UnixNano()))
)

const (
	DefaultNumShards       = 16
	DefaultJanitorInterval = 10 * time.Second
)

// Store is the string-keyed host for wave objects. Keys are spread over
// shards by seeded xxhash; calls on a single wave are serialized by the
// owning shard's lock, independent waves proceed in parallel.
//
// A key holds either raw bytes or a wave; mixing the two surfaces yields
// ErrWrongType.
type Store struct {
	shards []*shard
	stats  []*StoreStats
	lt     *LatencyTracker

	now  func() int64 // unix seconds, host clock boundary
	stop chan struct{}
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	wave       *wave.Wave
	bytes      []byte
	expireAtMs int64 // 0 = never
}

type StoreStats struct {
	Incrs   atomic.Uint64
	Gets    atomic.Uint64
	Resets  atomic.Uint64
	TooBig  atomic.Uint64
	Expired atomic.Uint64
	Waves   atomic.Uint64
}

type Config struct {
	NumShards       int
	JanitorInterval time.Duration
	LogStats        bool
}

func New(config Config) (*Store, error) {
	if config.NumShards <= 0 {
		return nil, ErrNumShardLessThan1
	}
	if config.JanitorInterval <= 0 {
		config.JanitorInterval = DefaultJanitorInterval
	}
	shards := make([]*shard, config.NumShards)
	stats := make([]*StoreStats, config.NumShards)
	for i := 0; i < config.NumShards; i++ {
		shards[i] = &shard{entries: make(map[string]*entry)}
		stats[i] = &StoreStats{}
	}
	s := &Store{
		shards: shards,
		stats:  stats,
		lt:     NewLatencyTracker(),
		now:    func() int64 { return time.Now().Unix() },
		stop:   make(chan struct{}),
	}
	go s.janitor(config.JanitorInterval)
	if config.LogStats {
		go s.logStats(config.JanitorInterval)
	}
	return s, nil
}

// Close stops the background goroutines. The store stays usable.
func (s *Store) Close() {
	close(s.stop)
}

func (s *Store) Stats(shardIdx int) *StoreStats {
	return s.stats[shardIdx]
}

func (s *Store) shardIdx(key string) uint32 {
	return uint32(xxhash.Sum64String(key+Seed)) % uint32(len(s.shards))
}

// live returns the entry for key, treating an expired one as absent.
// Callers hold the shard lock.
func (sh *shard) live(key string, nowMs int64) *entry {
	e := sh.entries[key]
	if e == nil {
		return nil
	}
	if e.expireAtMs != 0 && e.expireAtMs <= nowMs {
		return nil
	}
	return e
}

// SetBytes stores a raw byte value, replacing whatever the key held.
// exptime is an absolute unix-seconds expiry, 0 for none.
func (s *Store) SetBytes(key string, value []byte, exptime uint64) error {
	idx := s.shardIdx(key)
	sh := s.shards[idx]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e := &entry{bytes: value}
	if exptime != 0 {
		e.expireAtMs = int64(exptime) * 1000
	}
	sh.entries[key] = e
	return nil
}

// GetBytes returns the raw byte value for key.
func (s *Store) GetBytes(key string) ([]byte, error) {
	idx := s.shardIdx(key)
	sh := s.shards[idx]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e := sh.live(key, s.now()*1000)
	if e == nil {
		return nil, ErrNoKey
	}
	if e.wave != nil {
		return nil, ErrWrongType
	}
	return e.bytes, nil
}

func (s *Store) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		nowMs := s.now() * 1000
		for i, sh := range s.shards {
			var swept uint64
			sh.mu.Lock()
			for key, e := range sh.entries {
				if e.expireAtMs != 0 && e.expireAtMs <= nowMs {
					delete(sh.entries, key)
					swept++
				}
			}
			sh.mu.Unlock()
			if swept > 0 {
				s.stats[i].Expired.Add(swept)
			}
		}
	}
}

func (s *Store) logStats(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		for i := range s.shards {
			s.shards[i].mu.RLock()
			keys := len(s.shards[i].entries)
			s.shards[i].mu.RUnlock()
			log.Info().Msgf("Shard %d keys=%d incrs=%d gets=%d resets=%d toobig=%d expired=%d",
				i, keys, s.stats[i].Incrs.Load(), s.stats[i].Gets.Load(),
				s.stats[i].Resets.Load(), s.stats[i].TooBig.Load(), s.stats[i].Expired.Load())
		}
		ip50, ip99 := s.lt.IncrLatencyPercentiles()
		gp50, gp99 := s.lt.GetLatencyPercentiles()
		log.Info().Msgf("Incr p50=%v p99=%v Get p50=%v p99=%v", ip50, ip99, gp50, gp99)
	}
}
