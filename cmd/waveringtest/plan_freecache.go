package main

import (
	"encoding/binary"
	"flag"
	"math/rand"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Meesho/BharatMLStack/wavering/internal/wave"
)

// planFreecacheBaseline runs a wave next to an exact per-second bucket
// store kept in freecache and reports the observed relative error of the
// fast query against the exact window sum.
func planFreecacheBaseline() {
	var (
		windowN    int64
		errorE     float64
		boundR     int64
		iterations int64
	)

	flag.Int64Var(&windowN, "n", 60, "wave window size")
	flag.Float64Var(&errorE, "e", 0.05, "wave relative error")
	flag.Int64Var(&boundR, "r", 1024, "wave value bound")
	flag.Int64Var(&iterations, "iterations", 1_000_000, "number of incrs")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	buckets := freecache.NewCache(32 * 1024 * 1024)
	base := time.Now().Unix()
	w := wave.New(windowN, errorE, boundR, base, false)

	var (
		maxErr  float64
		sumErr  float64
		samples int64
	)

	ts := base
	for k := int64(0); k < iterations; k++ {
		v := int64(rand.Intn(int(boundR))) + 1
		if err := w.Incr(v, ts); err != nil {
			log.Fatal().Err(err).Msg("incr failed")
		}
		bucketAdd(buckets, ts, v, int(windowN)+1)

		if k%97 == 0 {
			exact := int64(0)
			for t := ts - windowN + 1; t <= ts; t++ {
				exact += bucketGet(buckets, t)
			}
			fast := w.Get(ts, true)
			if exact > 0 {
				rel := float64(fast-exact) / float64(exact)
				if rel < 0 {
					rel = -rel
				}
				sumErr += rel
				samples++
				if rel > maxErr {
					maxErr = rel
				}
			}
		}

		// advance roughly one second every few items
		if k%7 == 0 {
			ts++
		}
	}

	log.Info().Msgf("samples=%d avg-rel-err=%.5f max-rel-err=%.5f target-e=%.5f",
		samples, sumErr/float64(samples), maxErr, errorE)
	if maxErr > errorE {
		log.Warn().Msgf("max relative error %.5f exceeded target %.5f", maxErr, errorE)
	}
}

func bucketAdd(c *freecache.Cache, ts, v int64, ttl int) {
	key := strconv.AppendInt(nil, ts, 10)
	var cur int64
	if raw, err := c.Get(key); err == nil && len(raw) == 8 {
		cur = int64(binary.LittleEndian.Uint64(raw))
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(cur+v))
	_ = c.Set(key, buf, ttl)
}

func bucketGet(c *freecache.Cache, ts int64) int64 {
	key := strconv.AppendInt(nil, ts, 10)
	raw, err := c.Get(key)
	if err != nil || len(raw) != 8 {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(raw))
}
