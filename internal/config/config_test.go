package config

import (
    "testing"
    "time"
)

func TestLoadRateLimitConfigClamps(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_TOKENS", "-3")
    t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    cfg := LoadRateLimitConfig()
    if cfg.Capacity != 1 || cfg.RefillTokens != 1 {
        t.Fatalf("expected clamped capacity and refill, got %+v", cfg)
    }
    if cfg.TTL != 10*time.Second {
        t.Fatalf("expected ttl raised to 5 refill intervals, got %v", cfg.TTL)
    }
    if cfg.KeyStrategy != "actor_route" {
        t.Fatalf("unexpected default key strategy %q", cfg.KeyStrategy)
    }
}

func TestLoadRateLimitConfigShorthands(t *testing.T) {
    t.Setenv("RATE_LIMIT_BURST", "25")
    t.Setenv("RATE_LIMIT_REFILL_EVERY", "500ms")

    cfg := LoadRateLimitConfig()
    if cfg.Capacity != 25 {
        t.Fatalf("capacity = %d, want 25", cfg.Capacity)
    }
    if cfg.RefillTokens != 1 || cfg.RefillInterval != 500*time.Millisecond {
        t.Fatalf("unexpected refill %d/%v", cfg.RefillTokens, cfg.RefillInterval)
    }
}

func TestLoadCacheConfigMethods(t *testing.T) {
    t.Setenv("CACHE_METHODS", " get, head ,,")
    t.Setenv("CACHE_ENABLED", "off")

    cfg := LoadCacheConfig()
    if cfg.Enabled {
        t.Fatalf("expected cache disabled")
    }
    if len(cfg.Methods) != 2 || !cfg.Methods["GET"] || !cfg.Methods["HEAD"] {
        t.Fatalf("unexpected methods %v", cfg.Methods)
    }
    if cfg.Prefix != "ledger-cache" {
        t.Fatalf("unexpected prefix %q", cfg.Prefix)
    }
}

func TestLoadRedisConfigHostPortWins(t *testing.T) {
    t.Setenv("REDIS_ADDR", "elsewhere:1")
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")
    t.Setenv("REDIS_DB", "2")

    cfg := LoadRedisConfig()
    if cfg.Addr != "cache:6380" || cfg.DB != 2 {
        t.Fatalf("unexpected redis config %+v", cfg)
    }
}

func TestAMQPURLPrecedence(t *testing.T) {
    t.Setenv("RABBITMQ_URL", "")
    t.Setenv("AMQP_URL", "amqp://b/")
    if got := AMQPURL(); got != "amqp://b/" {
        t.Fatalf("AMQPURL() = %q", got)
    }
    t.Setenv("RABBITMQ_URL", "amqp://a/")
    if got := AMQPURL(); got != "amqp://a/" {
        t.Fatalf("AMQPURL() = %q", got)
    }
}
