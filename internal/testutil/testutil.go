//go:build integration

package testutil

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// StoreDB is the Redis database integration tests write to.
const StoreDB = 9

// RedisAddr returns the address of the test Redis (IP:port).
// It first checks POCLAB_TEST_REDIS_ADDR, then discovers the Docker container IP.
func RedisAddr() string {
	if addr := os.Getenv("POCLAB_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}

	ip := redisContainerIP()
	if ip == "" {
		return ""
	}
	return ip + ":6379"
}

func redisContainerIP() string {
	out, err := exec.Command("docker", "inspect",
		"--format", "{{range .NetworkSettings.Networks}}{{.IPAddress}}{{end}}",
		"poclab-test-redis").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// SkipIfNoRedis skips the test if the test Redis is not reachable.
func SkipIfNoRedis(t *testing.T) {
	t.Helper()

	addr := RedisAddr()
	if addr == "" {
		t.Skip("test Redis not available: set POCLAB_TEST_REDIS_ADDR")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("test Redis not reachable at %s: %v", addr, err)
	}
}

// FlushDB flushes a specific Redis database.
func FlushDB(t *testing.T, addr string, db int) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("flushing DB %d: %v", db, err)
	}
}

// ReadEntry reads the hash at "TABLE|key" from a specific Redis DB.
func ReadEntry(t *testing.T, addr string, db int, table, key string) map[string]string {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	redisKey := table + "|" + key
	vals, err := client.HGetAll(context.Background(), redisKey).Result()
	if err != nil {
		t.Fatalf("reading %s: %v", redisKey, err)
	}
	return vals
}

// KeyCount returns the number of keys in a Redis database.
func KeyCount(t *testing.T, addr string, db int) int {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	defer client.Close()

	n, err := client.DBSize(context.Background()).Result()
	if err != nil {
		t.Fatalf("failed to get key count for DB %d: %v", db, err)
	}
	return int(n)
}

// Context returns a context with a reasonable timeout for tests.
// The cancel function is registered via t.Cleanup.
func Context(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}
