// Package config loads application configuration from environment variables
// into annotated structs, with an optional .env bootstrap for local
// development.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11. Each
// configuration type is parsed at most once per process and cached, so
// components can call Load for their own config struct without coordinating
// with each other.
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
