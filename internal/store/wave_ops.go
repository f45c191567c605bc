package store

import (
	"time"

	"github.com/Meesho/BharatMLStack/wavering/internal/wave"
	metrics "github.com/Meesho/BharatMLStack/wavering/pkg/metrics"
)

// Tristate carries an optional yes/no argument.
type Tristate int8

const (
	TriUnset Tristate = iota
	TriNo
	TriYes
)

// IncrArgs are the optional arguments of the incrby operation, in wire
// order: incr, ts, expire, n, e, r. NArgs says how many were explicitly
// provided; the resize and expire-update rules key off it, mirroring the
// argc-sensitive behavior of the wire command.
type IncrArgs struct {
	Incr   int64
	TS     int64
	Expire Tristate
	N      int64
	E      float64
	R      int64
	NArgs  int
}

// DefaultIncrArgs returns the documented defaults: incr 1, server time,
// expire unset, N 60, E 0.05, R derived from N.
func DefaultIncrArgs() IncrArgs {
	return IncrArgs{
		Incr:   1,
		Expire: TriUnset,
		N:      wave.DefaultN,
		E:      wave.DefaultE,
		R:      -1,
	}
}

func (a *IncrArgs) validate() error {
	if a.Incr < 0 {
		return ErrSyntax
	}
	if a.TS < 0 {
		return ErrSyntax
	}
	if a.N == -1 {
		a.N = wave.DefaultN
	}
	if a.N <= 0 {
		return ErrSyntax
	}
	if a.E <= 0 || a.E >= 1 {
		return ErrSyntax
	}
	if a.R < -1 {
		return ErrSyntax
	}
	if a.R == -1 {
		a.R = wave.MaxIncrement(a.N)
	}
	return nil
}

// IncrBy applies one increment to the wave at key, creating it when absent,
// and returns the exact window sum at the increment's timestamp. The key's
// expiry clock is re-armed when the wave auto-expires.
func (s *Store) IncrBy(key string, a IncrArgs) (int64, error) {
	if err := a.validate(); err != nil {
		return 0, err
	}
	ts := a.TS
	if ts == 0 {
		ts = s.now()
	}

	start := time.Now()
	idx := s.shardIdx(key)
	sh := s.shards[idx]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e := sh.live(key, s.now()*1000)
	if e == nil {
		e = &entry{wave: wave.New(a.N, a.E, a.R, ts, a.Expire == TriYes)}
		sh.entries[key] = e
		s.stats[idx].Waves.Add(1)
	}
	if e.wave == nil {
		return 0, ErrWrongType
	}
	w := e.wave

	// Geometry changes ride on the last explicitly provided argument.
	if (a.NArgs == 4 && w.N() != a.N) ||
		(a.NArgs == 5 && w.E() != a.E) ||
		(a.NArgs == 6 && w.R() != a.R) {
		w.Resize(a.N, a.E, a.R)
	}
	if a.NArgs == 3 && a.Expire != TriUnset {
		w.SetExpire(a.Expire == TriYes)
	}

	if a.Incr > w.R() {
		s.stats[idx].TooBig.Add(1)
		return 0, ErrTooBig
	}
	if a.Incr > 0 {
		if err := w.Incr(a.Incr, ts); err != nil {
			return 0, ErrInternal
		}
	}
	total := w.Get(ts, false)

	if w.Expire() {
		e.expireAtMs = (w.Last() + w.N() + 1) * 1000
	}

	s.stats[idx].Incrs.Add(1)
	s.lt.RecordIncr(time.Since(start))
	if metrics.Enabled() {
		tags := metrics.GetShardTag(idx)
		metrics.Incr(metrics.KeyIncrs, tags)
		metrics.Timing(metrics.KeyIncrLatency, time.Since(start), tags)
	}
	return total, nil
}

// Get answers the window-sum query at ts for the wave at key. A zero ts
// means server time.
func (s *Store) Get(key string, ts int64, fast bool) (int64, error) {
	if ts < 0 {
		return 0, ErrSyntax
	}
	if ts == 0 {
		ts = s.now()
	}

	start := time.Now()
	idx := s.shardIdx(key)
	sh := s.shards[idx]
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e := sh.live(key, s.now()*1000)
	if e == nil {
		return 0, ErrNoKey
	}
	if e.wave == nil {
		return 0, ErrWrongType
	}

	total := e.wave.Get(ts, fast)
	s.stats[idx].Gets.Add(1)
	s.lt.RecordGet(time.Since(start))
	if metrics.Enabled() {
		tags := metrics.GetShardTag(idx)
		metrics.Incr(metrics.KeyGets, tags)
		metrics.Timing(metrics.KeyGetLatency, time.Since(start), tags)
	}
	return total, nil
}

// Total returns the raw running total of the wave at key.
func (s *Store) Total(key string) (int64, error) {
	idx := s.shardIdx(key)
	sh := s.shards[idx]
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e := sh.live(key, s.now()*1000)
	if e == nil {
		return 0, ErrNoKey
	}
	if e.wave == nil {
		return 0, ErrWrongType
	}
	return e.wave.Total(), nil
}

// Reset resets every existing wave among keys and returns how many were hit.
// Missing keys and byte-valued keys are skipped.
func (s *Store) Reset(keys ...string) int {
	done := 0
	now := s.now()
	for _, key := range keys {
		idx := s.shardIdx(key)
		sh := s.shards[idx]
		sh.mu.Lock()
		e := sh.live(key, now*1000)
		if e != nil && e.wave != nil {
			e.wave.Reset(now)
			s.stats[idx].Resets.Add(1)
			done++
		}
		sh.mu.Unlock()
	}
	return done
}

// Debug renders the wave at key as human-readable lines.
func (s *Store) Debug(key string, showLists bool) ([]string, error) {
	idx := s.shardIdx(key)
	sh := s.shards[idx]
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e := sh.live(key, s.now()*1000)
	if e == nil {
		return nil, ErrNoKey
	}
	if e.wave == nil {
		return nil, ErrWrongType
	}
	return e.wave.Debug(s.now(), showLists), nil
}
