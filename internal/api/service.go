// Package api exposes the gateway's JSON/SSE surface: device control,
// server info, and BLE provisioning, wired against the manager and SSE hub.
package api

import (
	"net"
	"time"

	"github.com/anova4all/gateway/internal/anovawifi"
	"github.com/anova4all/gateway/internal/config"
	"github.com/anova4all/gateway/internal/metrics"
	"github.com/anova4all/gateway/internal/sse"
	"go.uber.org/zap"
)

// Service holds the dependencies every handler needs: the device registry,
// the SSE fan-out hub, configuration, and a logger.
type Service struct {
	manager *anovawifi.Manager
	hub     *sse.Hub
	cfg     *config.Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService wires a Service around an already-running Manager and Hub.
func NewService(manager *anovawifi.Manager, hub *sse.Hub, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{manager: manager, hub: hub, cfg: cfg, metrics: m, logger: logger}
}

// localOutboundIP returns the address a UDP socket would use to reach the
// public internet, without sending any packet. It is the gateway's default
// advertised host when no explicit host is configured.
func localOutboundIP() (string, error) {
	conn, err := net.DialTimeout("udp", "10.255.255.255:1", time.Second)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	addr := conn.LocalAddr().(*net.UDPAddr)
	return addr.IP.String(), nil
}
