package main

import (
	_ "net/http/pprof"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/Meesho/BharatMLStack/wavering/external/server"
	"github.com/Meesho/BharatMLStack/wavering/internal/store"
	metrics "github.com/Meesho/BharatMLStack/wavering/pkg/metrics"
)

func main() {
	viper.AutomaticEnv()
	viper.SetDefault("APP_NAME", "wavering")
	viper.SetDefault("WAVERING_ADDR", ":6380")
	viper.SetDefault("WAVERING_SHARDS", store.DefaultNumShards)
	viper.SetDefault("WAVERING_LOG_LEVEL", "info")

	level, err := zerolog.ParseLevel(viper.GetString("WAVERING_LOG_LEVEL"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	metrics.Init()

	st, err := store.New(store.Config{
		NumShards: viper.GetInt("WAVERING_SHARDS"),
		LogStats:  true,
	})
	if err != nil {
		log.Panic().Err(err).Msg("Failed to create store")
	}

	addr := viper.GetString("WAVERING_ADDR")
	log.Info().Msgf("wavering listening on %s with %d shards", addr, viper.GetInt("WAVERING_SHARDS"))
	if err := server.ServeRESP(addr, st); err != nil {
		log.Panic().Err(err).Msg("Server terminated")
	}
}
