//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_SharedState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	cfg := DefaultConfig("vercel")
	cfg.Redis = redisClient

	writer := NewTracker(cfg, zerolog.Nop())
	reader := NewTracker(cfg, zerolog.Nop())

	headers := http.Header{}
	headers.Set("X-RateLimit-Limit", "100")
	headers.Set("X-RateLimit-Remaining", "7")
	headers.Set("X-RateLimit-Reset", "120")

	if err := writer.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	state, err := reader.GetState(ctx)
	if err != nil || state == nil {
		t.Fatalf("GetState() on second replica = %v, %v", state, err)
	}
	if state.Remaining != 7 || state.Limit != 100 {
		t.Errorf("shared state = %+v", state)
	}
	if !state.NeedsThrottling() {
		t.Error("7/100 remaining should throttle")
	}

	ttl, err := redisClient.TTL(ctx, "ratelimit:vercel").Result()
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 0 || ttl > 3*time.Minute+5*time.Second {
		t.Errorf("state TTL = %v, want window + 1m", ttl)
	}
}

func TestTracker_Integration_ExhaustedAcrossReplicas(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	ctx := context.Background()
	cfg := DefaultConfig("frontapp")
	cfg.Redis = redisClient
	cfg.MaxWait = time.Second

	headers := http.Header{}
	headers.Set("X-RateLimit-Limit", "50")
	headers.Set("X-RateLimit-Remaining", "0")
	headers.Set("X-RateLimit-Reset", "3600")

	if err := NewTracker(cfg, zerolog.Nop()).UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	err := NewTracker(cfg, zerolog.Nop()).Wait(ctx)
	if err == nil {
		t.Fatal("Wait() on a replica should see the exhausted window")
	}
}
