package config

// This file defines the Redis client constructor. Redis backs two optional
// features: distributed rate limiting and response caching for the
// dashboard and location endpoints. When no Redis server is reachable at
// startup the constructor returns nil and both features are disabled;
// pass correctness never depends on Redis.

import (
	"context"
	"crypto/tls"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand (host/port take precedence when both are set)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
// The returned client is nil if a connection cannot be established.
func NewRedisClient() *redis.Client {
	addr := getenv("REDIS_ADDR", "localhost:6379")
	if host, port := getenv("REDIS_HOST", ""), getenv("REDIS_PORT", ""); host != "" && port != "" {
		addr = host + ":" + port
	}
	dbNum := 0
	if n, err := strconv.Atoi(getenv("REDIS_DB", "0")); err == nil {
		dbNum = n
	}
	var tlsConf *tls.Config
	if v := getenv("REDIS_TLS", ""); strings.EqualFold(v, "true") || v == "1" {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      addr,
		Password:  getenv("REDIS_PASSWORD", ""),
		DB:        dbNum,
		TLSConfig: tlsConf,
	})
	// Ping with a short timeout; nil tells callers to run without Redis.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis unavailable at %s, cache and rate limiting disabled: %v", addr, err)
		return nil
	}
	return client
}
