package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// mockRedisEvaler registra la última invocación Eval y devuelve un
// resultado prefijado.
type mockRedisEvaler struct {
	result   int64
	err      error
	lastKeys []string
	lastArgs []interface{}
	calls    int
}

func (m *mockRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	m.calls++
	m.lastKeys = keys
	m.lastArgs = args
	cmd := redis.NewCmd(ctx)
	if m.err != nil {
		cmd.SetErr(m.err)
	} else {
		cmd.SetVal(m.result)
	}
	return cmd
}

func newMockModelLimiter(evaler redisEvaler, window time.Duration, max int) *redisModelRateLimiter {
	return &redisModelRateLimiter{client: evaler, window: window, max: max, prefix: "model:rl:"}
}

func TestModelRateLimiterNilClientFailsOpen(t *testing.T) {
	if limiter := NewRedisModelRateLimiter(nil, time.Minute, 10); limiter != nil {
		t.Fatalf("expected nil limiter without redis client")
	}

	var limiter *redisModelRateLimiter
	if !limiter.Allow("u1") {
		t.Fatalf("nil limiter must allow")
	}
}

func TestModelRateLimiterRejectsEmptyKey(t *testing.T) {
	mock := &mockRedisEvaler{result: 1}
	limiter := newMockModelLimiter(mock, time.Minute, 10)

	if limiter.Allow("   ") {
		t.Fatalf("blank key must be rejected")
	}
	if mock.calls != 0 {
		t.Fatalf("blank key must not reach redis, got %d calls", mock.calls)
	}
}

func TestModelRateLimiterAllowsWithinMax(t *testing.T) {
	mock := &mockRedisEvaler{result: 3}
	limiter := newMockModelLimiter(mock, 30*time.Second, 5)

	if !limiter.Allow("u1") {
		t.Fatalf("count within max must be allowed")
	}
	if len(mock.lastKeys) != 1 || mock.lastKeys[0] != "model:rl:u1" {
		t.Fatalf("unexpected redis key %v", mock.lastKeys)
	}
	if len(mock.lastArgs) != 1 || mock.lastArgs[0] != 30 {
		t.Fatalf("expected window seconds as ARGV, got %v", mock.lastArgs)
	}
}

func TestModelRateLimiterDeniesOverMax(t *testing.T) {
	mock := &mockRedisEvaler{result: 6}
	limiter := newMockModelLimiter(mock, time.Minute, 5)

	if limiter.Allow("u1") {
		t.Fatalf("count over max must be denied")
	}
}

func TestModelRateLimiterFailsOpenOnRedisError(t *testing.T) {
	mock := &mockRedisEvaler{err: errors.New("connection refused")}
	limiter := newMockModelLimiter(mock, time.Minute, 5)

	if !limiter.Allow("u1") {
		t.Fatalf("redis errors must fail open")
	}
}
