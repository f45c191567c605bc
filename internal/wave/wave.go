package wave

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidIncrement = errors.New("increment must be greater than 0")
	ErrInvalidTimestamp = errors.New("timestamp must be greater than 0")
)

const (
	DefaultN = 60
	DefaultE = 0.05
)

// Wave maintains an approximate sliding-window sum over a stream of bounded
// non-negative integers, after Gibbons & Tirthapura's deterministic wave.
// Triples live simultaneously in the chronological list L and in one of the
// level queues; the invariants tying total, z, L and the queues together are
// what Incr and Get rely on.
//
// A Wave is not safe for concurrent use; callers serialize per wave.
type Wave struct {
	expire bool
	n      int64
	e      float64
	r      int64
	m      int64

	start int64 // creation / reset timestamp, seconds
	last  int64 // newest accepted timestamp
	pos   int64 // (last - start) mod M
	total int64 // running sum mod M
	z     int64 // z of the most recently expired triple

	numLevels int64
	cap       int
	levels    []levelQueue
	items     itemList
}

// New creates a wave for window size n, relative error e and value bound r,
// anchored at ts. A zero e defaults to 0.05. The caller supplies ts; the
// engine never reads a clock.
func New(n int64, e float64, r int64, ts int64, expire bool) *Wave {
	if e == 0 {
		e = DefaultE
	}
	w := &Wave{
		expire: expire,
		n:      n,
		e:      e,
		r:      r,
		m:      Modulus(n, r),
		start:  ts,
		last:   ts,
	}
	w.numLevels = NumLevels(n, e, r)
	w.cap = LevelCap(e)
	w.levels = make([]levelQueue, w.numLevels)
	return w
}

func (w *Wave) N() int64      { return w.n }
func (w *Wave) E() float64    { return w.e }
func (w *Wave) R() int64      { return w.r }
func (w *Wave) M() int64      { return w.m }
func (w *Wave) Start() int64  { return w.start }
func (w *Wave) Last() int64   { return w.last }
func (w *Wave) Pos() int64    { return w.pos }
func (w *Wave) Total() int64  { return w.total }
func (w *Wave) Z() int64      { return w.z }
func (w *Wave) Len() int      { return w.items.size }
func (w *Wave) Expire() bool  { return w.expire }
func (w *Wave) NumLevels() int64 { return w.numLevels }
func (w *Wave) LevelLen(j int) int { return w.levels[j].size }

func (w *Wave) SetExpire(expire bool) { w.expire = expire }

// Incr feeds one item with value v at timestamp ts. Timestamps older than
// start are silently ignored; a ts that does not advance last still inserts
// at the current pos, which tolerates small out-of-order bursts.
func (w *Wave) Incr(v, ts int64) error {
	if v <= 0 {
		return ErrInvalidIncrement
	}
	if ts == 0 {
		return ErrInvalidTimestamp
	}
	if ts < w.start {
		return nil
	}

	if ts > w.start && ts > w.last {
		w.pos = (ts - w.start) % w.m
		w.last = ts
	}

	// Expire from the head of L while the head has fallen out of the
	// window. pos-n may be negative for early windows; the comparison is
	// then vacuously false. The last expired z wins.
	for it := w.items.head; it != nil && it.Pos <= w.pos-w.n; it = w.items.head {
		w.z = it.Z
		w.levels[it.level].remove(it)
		w.items.remove(it)
	}

	j := level(w.total, v, w.numLevels)
	w.total = (w.total + v) % w.m

	q := &w.levels[j]
	if q.size >= w.cap {
		old := q.tail
		w.items.remove(old)
		q.remove(old)
	}

	it := &Item{Pos: w.pos, V: v, Z: w.total, level: j}
	q.pushHead(it)
	w.items.pushTail(it)
	return nil
}

// Get answers the window-sum query for ts. With fast set it returns the
// midpoint estimate (relative error <= e when invariants hold); otherwise it
// scans L for the exact value. A handful of boundary alignments short-circuit
// to exact answers either way.
func (w *Wave) Get(ts int64, fast bool) int64 {
	if w == nil || ts == 0 {
		return 0
	}
	if ts < w.start {
		return 0
	}
	if ts <= w.last-w.n {
		return 0
	}
	if ts >= w.last+w.n {
		return 0
	}
	if ts == w.last {
		return w.total - w.z
	}
	if w.items.size == 0 {
		return 0
	}

	// Walk to the first triple still inside the window for ts. If every
	// triple is older the walk stops at the tail.
	head := w.items.head
	for head.Pos < ts-w.n && head.lnext != nil {
		head = head.lnext
	}

	z1 := w.z
	p, v2, z2 := head.Pos, head.V, head.Z

	if p == ts-w.n+1 {
		return w.total - z2 + v2
	}
	if p == ts-w.n {
		return w.total - z2
	}
	if ts == w.pos {
		return w.total - w.z
	}

	if fast {
		return w.total - (z1+z2-v2)/2
	}

	if ts < w.last {
		var future int64
		lim := (ts - w.start) % w.m
		for it := w.items.tail; it != nil; it = it.lprev {
			if it.Pos <= lim {
				future += it.V
			}
		}
		return w.total - future
	}

	var win int64
	lim := (ts - w.start - w.n) % w.m
	for it := w.items.head; it != nil; it = it.lnext {
		if it.Pos > lim {
			win += it.V
		}
	}
	return win
}

// Reset empties L and every level queue and re-anchors the wave at ts,
// keeping the (n, e, r, expire) configuration.
func (w *Wave) Reset(ts int64) {
	w.start = ts
	w.last = ts
	w.pos = 0
	w.total = 0
	w.z = 0
	w.purge()
}

// Resize purges all state and installs the new geometry. Counters are kept;
// callers are expected to treat a resize as a semantic reset.
func (w *Wave) Resize(n int64, e float64, r int64) {
	w.purge()
	w.n = n
	w.e = e
	w.r = r
	w.m = Modulus(n, r)
	w.numLevels = NumLevels(n, e, r)
	w.cap = LevelCap(e)
	w.levels = make([]levelQueue, w.numLevels)
}

func (w *Wave) purge() {
	for j := range w.levels {
		w.levels[j] = levelQueue{}
	}
	w.items = itemList{}
}

const debugRule = " C -----------------------------------------------"

// Debug renders the wave configuration and, when showLists is set, every
// level queue and the list L as human-readable lines. now is the
// host-supplied current time.
func (w *Wave) Debug(now int64, showLists bool) []string {
	lines := []string{
		debugRule,
		fmt.Sprintf("     NOW => %d", now),
		debugRule,
		fmt.Sprintf("  EXPIRE => %t", w.expire),
		fmt.Sprintf("       N => %d", w.n),
		fmt.Sprintf("       E => %f", w.e),
		fmt.Sprintf("       R => %d", w.r),
		fmt.Sprintf("       M => %d", w.m),
		debugRule,
		fmt.Sprintf("start ts => %d", w.start),
		fmt.Sprintf(" last ts => %d", w.last),
		fmt.Sprintf("limit ts => %d", w.last+w.n),
		fmt.Sprintf("     pos => %d", w.pos),
		fmt.Sprintf("   total => %d", w.total),
		fmt.Sprintf("       z => %d", w.z),
		debugRule,
	}
	if !showLists {
		return lines
	}

	lines = append(lines,
		" ",
		" W -----------------------------------------------",
		fmt.Sprintf("    #l => %d", w.numLevels),
		fmt.Sprintf("max sz => %d", w.cap),
	)
	for j := range w.levels {
		if w.levels[j].size == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf(" l [%d] --------------------------------------------", j))
		k := 0
		for it := w.levels[j].head; it != nil; it = it.qnext {
			lines = append(lines, fmt.Sprintf("      [%2d] => ( p=%d , v=%d , z=%d )", k, it.Pos, it.V, it.Z))
			k++
		}
		lines = append(lines, " l -----------------------------------------------")
	}
	lines = append(lines,
		" ",
		" W -----------------------------------------------",
		" L -----------------------------------------------",
		fmt.Sprintf("  sz L => %d", w.items.size),
	)
	for it := w.items.head; it != nil; it = it.lnext {
		lines = append(lines, fmt.Sprintf("  ( p=%d , v=%d , z=%d )", it.Pos, it.V, it.Z))
	}
	lines = append(lines, " L -----------------------------------------------")
	return lines
}
