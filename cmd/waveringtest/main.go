package main

import (
	"math/rand"
	"os"

	_ "net/http/pprof"
)

// normalDistInt returns an integer in [0, max) following a normal
// distribution centered at max/2 with standard deviation = max/8.
func normalDistInt(max int) int {
	if max <= 0 {
		return 0
	}

	mean := float64(max) / 2.0
	stdDev := float64(max) / 8.0

	for {
		val := rand.NormFloat64()*stdDev + mean

		if val >= 0 && val < float64(max) {
			return int(val)
		}
	}
}

func main() {
	// pick plan from the environment variable
	plan := os.Getenv("PLAN")
	if plan == "gaussian" {
		planWaveGaussian()
	} else if plan == "freecache" {
		planFreecacheBaseline()
	} else {
		panic("invalid plan")
	}
}
