package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHealthChecker(t *testing.T) {
	checker := NewHealthChecker()
	assert.NotNil(t, checker)
	assert.Empty(t, checker.checks)
}

func TestHealthChecker_RegisterCheck(t *testing.T) {
	checker := NewHealthChecker()

	checker.RegisterCheck("test-check", func(ctx context.Context) (Status, string) {
		return StatusHealthy, "OK"
	}, 30*time.Second)

	require.Contains(t, checker.checks, "test-check")
	check := checker.checks["test-check"]
	assert.Equal(t, "test-check", check.Name)
	assert.Equal(t, StatusHealthy, check.Status)
	assert.Equal(t, "not checked yet", check.Message)
	assert.Equal(t, 30*time.Second, check.Interval)
}

func TestHealthChecker_RegisterMultipleChecks(t *testing.T) {
	checker := NewHealthChecker()

	names := []string{"tcp_server", "manager", "sse_hub"}
	for _, name := range names {
		checker.RegisterCheck(name, func(ctx context.Context) (Status, string) {
			return StatusHealthy, "OK"
		}, time.Minute)
	}

	assert.Len(t, checker.checks, 3)
	for _, name := range names {
		assert.Contains(t, checker.checks, name)
	}
}

func TestHealthChecker_RunChecks(t *testing.T) {
	checker := NewHealthChecker()

	checker.RegisterCheck("healthy-check", func(ctx context.Context) (Status, string) {
		return StatusHealthy, "all good"
	}, time.Minute)
	checker.RegisterCheck("degraded-check", func(ctx context.Context) (Status, string) {
		return StatusDegraded, "some issues"
	}, time.Minute)
	checker.RegisterCheck("unhealthy-check", func(ctx context.Context) (Status, string) {
		return StatusUnhealthy, "critical error"
	}, time.Minute)

	results := checker.RunChecks(context.Background())
	require.Len(t, results, 3)

	assert.Equal(t, StatusHealthy, results["healthy-check"].Status)
	assert.Equal(t, "all good", results["healthy-check"].Message)
	assert.Equal(t, StatusDegraded, results["degraded-check"].Status)
	assert.Equal(t, StatusUnhealthy, results["unhealthy-check"].Status)

	for _, result := range results {
		assert.False(t, result.LastCheck.IsZero())
	}
}

func TestHealthChecker_GetOverallStatus(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		checker := NewHealthChecker()
		checker.RegisterCheck("a", func(ctx context.Context) (Status, string) { return StatusHealthy, "" }, time.Minute)
		checker.RegisterCheck("b", func(ctx context.Context) (Status, string) { return StatusHealthy, "" }, time.Minute)
		checker.RunChecks(context.Background())
		assert.Equal(t, StatusHealthy, checker.GetOverallStatus())
	})

	t.Run("degraded dominates healthy", func(t *testing.T) {
		checker := NewHealthChecker()
		checker.RegisterCheck("a", func(ctx context.Context) (Status, string) { return StatusHealthy, "" }, time.Minute)
		checker.RegisterCheck("b", func(ctx context.Context) (Status, string) { return StatusDegraded, "" }, time.Minute)
		checker.RunChecks(context.Background())
		assert.Equal(t, StatusDegraded, checker.GetOverallStatus())
	})

	t.Run("unhealthy dominates everything", func(t *testing.T) {
		checker := NewHealthChecker()
		checker.RegisterCheck("a", func(ctx context.Context) (Status, string) { return StatusHealthy, "" }, time.Minute)
		checker.RegisterCheck("b", func(ctx context.Context) (Status, string) { return StatusDegraded, "" }, time.Minute)
		checker.RegisterCheck("c", func(ctx context.Context) (Status, string) { return StatusUnhealthy, "" }, time.Minute)
		checker.RunChecks(context.Background())
		assert.Equal(t, StatusUnhealthy, checker.GetOverallStatus())
	})
}

func TestHealthChecker_GetCheckResults(t *testing.T) {
	checker := NewHealthChecker()
	checker.RegisterCheck("test-check", func(ctx context.Context) (Status, string) {
		return StatusHealthy, "all good"
	}, time.Minute)
	checker.RunChecks(context.Background())

	results := checker.GetCheckResults()
	assert.Equal(t, StatusHealthy, results["status"])
	assert.NotNil(t, results["checks"])
	assert.NotNil(t, results["timestamp"])

	checks := results["checks"].([]map[string]interface{})
	require.Len(t, checks, 1)
	assert.Equal(t, "test-check", checks[0]["name"])
	assert.Equal(t, StatusHealthy, checks[0]["status"])
}

func TestHealthChecker_EmptyChecks(t *testing.T) {
	checker := NewHealthChecker()
	assert.Equal(t, StatusHealthy, checker.GetOverallStatus())
	assert.Empty(t, checker.RunChecks(context.Background()))
}

func TestHealthChecker_ConcurrentAccess(t *testing.T) {
	checker := NewHealthChecker()
	checker.RegisterCheck("concurrent-check", func(ctx context.Context) (Status, string) {
		return StatusHealthy, "OK"
	}, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); checker.RunChecks(context.Background()) }()
		go func() { defer wg.Done(); checker.GetOverallStatus() }()
		go func() { defer wg.Done(); checker.GetCheckResults() }()
	}
	wg.Wait()
}

func TestHealthChecker_StartPeriodicChecks(t *testing.T) {
	checker := NewHealthChecker()

	var mu sync.Mutex
	count := 0
	checker.RegisterCheck("periodic", func(ctx context.Context) (Status, string) {
		mu.Lock()
		count++
		mu.Unlock()
		return StatusHealthy, "OK"
	}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	checker.StartPeriodicChecks(ctx)

	time.Sleep(60 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, count, 2)
}

func TestTCPServerHealthCheck(t *testing.T) {
	t.Run("alive", func(t *testing.T) {
		check := TCPServerHealthCheck(func() bool { return true })
		status, msg := check(context.Background())
		assert.Equal(t, StatusHealthy, status)
		assert.Contains(t, msg, "accepting")
	})

	t.Run("not alive", func(t *testing.T) {
		check := TCPServerHealthCheck(func() bool { return false })
		status, _ := check(context.Background())
		assert.Equal(t, StatusUnhealthy, status)
	})
}

func TestManagerHealthCheck(t *testing.T) {
	check := ManagerHealthCheck(func() int { return 3 })
	status, msg := check(context.Background())
	assert.Equal(t, StatusHealthy, status)
	assert.Contains(t, msg, "3 device(s) connected")
}
