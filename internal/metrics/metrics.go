package metrics

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Metrics holds atomic-guarded counters for the gateway's runtime.
type Metrics struct {
	// Device metrics
	DevicesConnected int64 `json:"devices_connected"`
	DevicesTotal     int64 `json:"devices_total_seen"`

	// Command metrics
	CommandsSent    int64   `json:"commands_sent"`
	CommandErrors   int64   `json:"command_errors"`
	CommandTimeouts int64   `json:"command_timeouts"`
	AvgCommandMs    float64 `json:"avg_command_time_ms"`

	// SSE metrics
	SSESubscribers int64 `json:"sse_subscribers"`
	SSEEventsSent  int64 `json:"sse_events_sent"`

	// System metrics
	Uptime         int64  `json:"uptime_seconds"`
	MemoryUsed     uint64 `json:"memory_used_bytes"`
	GoroutineCount int    `json:"goroutine_count"`

	// API metrics
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	AvgResponseTime float64 `json:"avg_response_time_ms"`

	mu        sync.RWMutex
	startTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
	}
}

func (m *Metrics) DeviceConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DevicesConnected++
	m.DevicesTotal++
}

func (m *Metrics) DeviceDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DevicesConnected > 0 {
		m.DevicesConnected--
	}
}

func (m *Metrics) CommandSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandsSent++
}

func (m *Metrics) CommandFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandErrors++
}

func (m *Metrics) CommandTimedOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommandTimeouts++
}

// RecordCommandTime folds d into an exponential moving average.
func (m *Metrics) RecordCommandTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms := float64(d.Milliseconds())
	if m.AvgCommandMs == 0 {
		m.AvgCommandMs = ms
	} else {
		m.AvgCommandMs = (m.AvgCommandMs * 0.9) + (ms * 0.1)
	}
}

func (m *Metrics) SSESubscriberConnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SSESubscribers++
}

func (m *Metrics) SSESubscriberDisconnected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SSESubscribers > 0 {
		m.SSESubscribers--
	}
}

func (m *Metrics) SSEEventBroadcast() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SSEEventsSent++
}

func (m *Metrics) IncrementRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRequests++
}

func (m *Metrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalErrors++
}

func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := float64(duration.Milliseconds())
	if m.AvgResponseTime == 0 {
		m.AvgResponseTime = ms
	} else {
		m.AvgResponseTime = (m.AvgResponseTime * 0.9) + (ms * 0.1)
	}
}

func (m *Metrics) UpdateSystemMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Uptime = int64(time.Since(m.startTime).Seconds())

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.MemoryUsed = memStats.Alloc
	m.GoroutineCount = runtime.NumGoroutine()
}

func (m *Metrics) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"devices": map[string]interface{}{
			"connected":  m.DevicesConnected,
			"total_seen": m.DevicesTotal,
		},
		"commands": map[string]interface{}{
			"sent":        m.CommandsSent,
			"errors":      m.CommandErrors,
			"timeouts":    m.CommandTimeouts,
			"avg_time_ms": m.AvgCommandMs,
		},
		"sse": map[string]interface{}{
			"subscribers": m.SSESubscribers,
			"events_sent": m.SSEEventsSent,
		},
		"system": map[string]interface{}{
			"uptime_seconds":    m.Uptime,
			"memory_used_bytes": m.MemoryUsed,
			"memory_used_mb":    m.MemoryUsed / 1024 / 1024,
			"goroutines":        m.GoroutineCount,
		},
		"api": map[string]interface{}{
			"total_requests":       m.TotalRequests,
			"total_errors":         m.TotalErrors,
			"avg_response_time_ms": m.AvgResponseTime,
			"error_rate": func() float64 {
				if m.TotalRequests == 0 {
					return 0.0
				}
				return float64(m.TotalErrors) / float64(m.TotalRequests) * 100
			}(),
		},
	}
}

func (m *Metrics) PrometheusFormat() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return `# HELP anova_gateway_devices_connected Number of appliances currently connected
# TYPE anova_gateway_devices_connected gauge
anova_gateway_devices_connected ` + formatInt64(m.DevicesConnected) + `

# HELP anova_gateway_commands_sent_total Total number of commands sent to appliances
# TYPE anova_gateway_commands_sent_total counter
anova_gateway_commands_sent_total ` + formatInt64(m.CommandsSent) + `

# HELP anova_gateway_command_errors_total Total number of failed commands
# TYPE anova_gateway_command_errors_total counter
anova_gateway_command_errors_total ` + formatInt64(m.CommandErrors) + `

# HELP anova_gateway_command_timeouts_total Total number of timed-out commands
# TYPE anova_gateway_command_timeouts_total counter
anova_gateway_command_timeouts_total ` + formatInt64(m.CommandTimeouts) + `

# HELP anova_gateway_sse_subscribers Number of connected SSE subscribers
# TYPE anova_gateway_sse_subscribers gauge
anova_gateway_sse_subscribers ` + formatInt64(m.SSESubscribers) + `

# HELP anova_gateway_uptime_seconds Uptime in seconds
# TYPE anova_gateway_uptime_seconds gauge
anova_gateway_uptime_seconds ` + formatInt64(m.Uptime) + `

# HELP anova_gateway_memory_used_bytes Memory used in bytes
# TYPE anova_gateway_memory_used_bytes gauge
anova_gateway_memory_used_bytes ` + formatUint64(m.MemoryUsed) + `

# HELP anova_gateway_goroutines Number of goroutines
# TYPE anova_gateway_goroutines gauge
anova_gateway_goroutines ` + formatInt(m.GoroutineCount) + `

# HELP anova_gateway_api_requests_total Total number of API requests
# TYPE anova_gateway_api_requests_total counter
anova_gateway_api_requests_total ` + formatInt64(m.TotalRequests) + `

# HELP anova_gateway_api_errors_total Total number of API errors
# TYPE anova_gateway_api_errors_total counter
anova_gateway_api_errors_total ` + formatInt64(m.TotalErrors) + `

# HELP anova_gateway_api_response_time_ms Average API response time in milliseconds
# TYPE anova_gateway_api_response_time_ms gauge
anova_gateway_api_response_time_ms ` + formatFloat64(m.AvgResponseTime) + `
`
}

func MetricsMiddleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		m.IncrementRequests()
		err := c.Next()

		duration := time.Since(start)
		m.RecordResponseTime(duration)

		if c.Response().StatusCode() >= 400 {
			m.IncrementErrors()
		}

		return err
	}
}

func formatInt64(n int64) string   { return fmt.Sprintf("%d", n) }
func formatUint64(n uint64) string { return fmt.Sprintf("%d", n) }
func formatInt(n int) string       { return fmt.Sprintf("%d", n) }
func formatFloat64(n float64) string {
	return fmt.Sprintf("%.2f", n)
}
