package config

import (
	"strconv"
	"time"

	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/rs/zerolog"
)

// envLookupFunc mirrors os.LookupEnv's signature so the loader can be
// driven by a fake environment in tests, the same injectable-source
// pattern used throughout this codebase's other config-ish packages.
type envLookupFunc func(key string) (string, bool)

func parseStringWithLookup(logger zerolog.Logger, lookup envLookupFunc, key, def string) string {
	v, ok := lookup(key)
	if !ok || v == "" {
		logger.Debug().Str("key", key).Str("default", def).Str("source", "default").Msg("using default value")
		return def
	}
	logger.Debug().Str("key", key).Str("source", "environment").Msg("using environment variable")
	return v
}

func parseBoolWithLookup(logger zerolog.Logger, lookup envLookupFunc, key string, def bool) bool {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("invalid bool env value, using default")
		return def
	}
	return b
}

func parseIntWithLookup(logger zerolog.Logger, lookup envLookupFunc, key string, def int) int {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("invalid int env value, using default")
		return def
	}
	return i
}

func parseFloatWithLookup(logger zerolog.Logger, lookup envLookupFunc, key string, def float64) float64 {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("invalid float env value, using default")
		return def
	}
	return f
}

func parseDurationWithLookup(logger zerolog.Logger, lookup envLookupFunc, key string, def time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn().Str("key", key).Str("value", v).Msg("invalid duration env value, using default")
		return def
	}
	return d
}

var configLogger = log.WithComponent("config")
