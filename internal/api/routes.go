package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/anova4all/gateway/internal/api/middleware"
)

// SetupRoutes registers every route against app, wiring device auth on
// per-device routes and admin auth on the BLE provisioning routes.
func (h *Handler) SetupRoutes(app *fiber.App) {
	deviceAuth := middleware.DeviceAuth(h.service.manager)
	adminAuth := middleware.AdminAuth(h.service.cfg)

	api := app.Group("/api")

	api.Get("/devices", h.listDevices)

	devices := api.Group("/devices/:id", deviceAuth)
	devices.Get("/state", h.getDeviceState)
	devices.Post("/target_temperature", h.setTargetTemperature)
	devices.Get("/target_temperature", h.getTargetTemperature)
	devices.Post("/start", h.startDevice)
	devices.Post("/stop", h.stopDevice)
	devices.Post("/timer", h.setTimer)
	devices.Post("/timer/start", h.startTimer)
	devices.Post("/timer/stop", h.stopTimer)
	devices.Post("/alarm/clear", h.clearAlarm)
	devices.Get("/temperature", h.getCurrentTemperature)
	devices.Get("/unit", h.getUnit)
	devices.Post("/unit", h.setUnit)
	devices.Get("/timer", h.getTimer)
	devices.Get("/speaker_status", h.getSpeakerStatus)
	devices.Get("/sse", h.streamEvents)

	api.Get("/server_info", h.getServerInfo)

	api.Post("/ble/connect_wifi", h.bleConnectWifi)

	ble := api.Group("/ble", adminAuth)
	ble.Get("/device", h.getBLEDevice)
	ble.Post("/config_wifi_server", h.bleConfigWifiServer)
	ble.Post("/restore_wifi_server", h.bleRestoreWifiServer)
	ble.Get("/", h.getBLEInfo)
	ble.Post("/secret_key", h.bleSecretKey)
}
