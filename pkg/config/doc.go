// Package config loads application configuration from environment
// variables into tagged structs.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11:
// the first Load in a process reads a .env file when present, and each
// struct type is parsed exactly once and cached for the lifetime of the
// process so all components see the same snapshot.
//
// # Usage
//
//	type RedisConfig struct {
//	    URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
//	}
//
//	var cfg RedisConfig
//	if err := config.Load(&cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// MustLoad panics on failure and is intended for wiring in main, where a
// missing required variable should stop the process immediately.
//
// # Error Handling
//
// Errors can be matched with errors.Is:
//
//   - ErrParsingConfig – env vars could not be parsed into the struct.
//   - ErrNilPointer    – nil destination passed to Load.
package config
