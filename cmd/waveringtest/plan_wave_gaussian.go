package main

import (
	"flag"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Meesho/BharatMLStack/wavering/internal/store"
)

// planWaveGaussian drives a store with Gaussian key popularity and value
// sizes while the timestamp stream advances one second per simulated tick.
func planWaveGaussian() {
	var (
		numShards   int
		numKeys     int
		writers     int
		readers     int
		iterations  int64
		windowN     int64
		errorE      float64
		boundR      int64
		logStats    bool
	)

	flag.IntVar(&numShards, "shards", 16, "number of store shards")
	flag.IntVar(&numKeys, "keys", 10_000, "number of wave keys")
	flag.IntVar(&writers, "writers", 4, "number of incr workers")
	flag.IntVar(&readers, "readers", 2, "number of get workers")
	flag.Int64Var(&iterations, "iterations", 10_000_000, "number of incrs per writer")
	flag.Int64Var(&windowN, "n", 60, "wave window size")
	flag.Float64Var(&errorE, "e", 0.05, "wave relative error")
	flag.Int64Var(&boundR, "r", 1024, "wave value bound")
	flag.BoolVar(&logStats, "log-stats", true, "periodically log store stats")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	go func() {
		log.Info().Msg("Starting pprof server on :8080")
		if err := http.ListenAndServe(":8080", nil); err != nil {
			log.Error().Err(err).Msg("pprof server failed")
		}
	}()

	st, err := store.New(store.Config{NumShards: numShards, LogStats: logStats})
	if err != nil {
		panic(err)
	}
	defer st.Close()

	base := time.Now().Unix()
	var tick atomic.Int64
	var incrs, gets atomic.Int64

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func() {
			defer wg.Done()
			for k := int64(0); k < iterations; k++ {
				key := fmt.Sprintf("wave%d", normalDistInt(numKeys))
				a := store.DefaultIncrArgs()
				a.Incr = int64(normalDistInt(int(boundR))) + 1
				a.TS = base + tick.Load()
				a.Expire = store.TriYes
				a.N = windowN
				a.E = errorE
				a.R = boundR
				a.NArgs = 6
				if _, err := st.IncrBy(key, a); err != nil {
					log.Error().Err(err).Str("key", key).Msg("incr failed")
				}
				n := incrs.Add(1)
				// one simulated second per thousand incrs
				if n%1000 == 0 {
					tick.Add(1)
				}
			}
		}()
	}

	stopReaders := make(chan struct{})
	wg.Add(readers)
	for r := 0; r < readers; r++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stopReaders:
					return
				default:
				}
				key := fmt.Sprintf("wave%d", normalDistInt(numKeys))
				ts := base + tick.Load()
				if _, err := st.Get(key, ts, true); err != nil && err != store.ErrNoKey {
					log.Error().Err(err).Str("key", key).Msg("get failed")
				}
				gets.Add(1)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				elapsed := time.Since(start).Seconds()
				log.Info().Msgf("Incrs/sec: %.0f Gets/sec: %.0f simulated-ts: %d",
					float64(incrs.Load())/elapsed, float64(gets.Load())/elapsed, tick.Load())
			}
		}
	}()

	// writers finish first, then stop the readers
	waitWriters := make(chan struct{})
	go func() {
		for incrs.Load() < int64(writers)*iterations {
			time.Sleep(100 * time.Millisecond)
		}
		close(waitWriters)
	}()
	<-waitWriters
	close(stopReaders)
	wg.Wait()
	close(done)

	log.Info().Msgf("Done: %d incrs %d gets in %v", incrs.Load(), gets.Load(), time.Since(start))
}
