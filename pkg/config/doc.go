// Package config provides application configuration management from environment variables.
//
// # Overview
//
// Configuration is read once at startup, defaults are applied, and the result
// is validated before any component is constructed.
//
// # Configuration Structure
//
// Server settings:
//
//	GUIDEPOST_HOST="0.0.0.0"
//	GUIDEPOST_PORT="8080"
//	GUIDEPOST_HEALTH_PORT="9090"
//
// Storage settings:
//
//	GUIDEPOST_POSTGRES_URL="postgres://localhost/guidepost?sslmode=disable"
//	GUIDEPOST_REDIS_URL="redis://localhost:6379"
//
// Tenant resolution:
//
//	GUIDEPOST_WHITELABEL_HOST_PATTERN="^guide\."
//	GUIDEPOST_TENANT_COOKIE_SECRET="<at least 32 bytes>"
//
// Tracking and commission:
//
//	GUIDEPOST_TRACK_LIMITER="redis"   # memory, redis
//	GUIDEPOST_TRACK_LIMIT="30"
//	GUIDEPOST_COMMISSION_MATURATION="336h"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
