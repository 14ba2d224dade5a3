package api

import (
	"bufio"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/anova4all/gateway/internal/anovable"
	"github.com/anova4all/gateway/internal/anovawifi"
	"github.com/anova4all/gateway/internal/anovawifi/command"
	"github.com/anova4all/gateway/internal/api/middleware"
	"github.com/anova4all/gateway/internal/gwerrors"
	"github.com/anova4all/gateway/internal/security"
)

// Handler holds the service dependencies for HTTP handlers.
type Handler struct {
	service *Service
}

// NewHandler wraps a Service for route registration.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func deviceFromLocals(c *fiber.Ctx) *anovawifi.Device {
	return c.Locals(middleware.DeviceLocalsKey).(*anovawifi.Device)
}

// --- device registry ---

type deviceSummary struct {
	ID      string `json:"id"`
	Version string `json:"version"`
}

func (h *Handler) listDevices(c *fiber.Ctx) error {
	devices := h.service.manager.Devices()
	out := make([]deviceSummary, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceSummary{ID: d.ID(), Version: d.Version()})
	}
	return c.JSON(out)
}

func (h *Handler) getDeviceState(c *fiber.Ctx) error {
	return c.JSON(deviceFromLocals(c).State())
}

// --- target temperature ---

type setTargetTemperatureRequest struct {
	Temperature float64      `json:"temperature"`
	Unit        command.Unit `json:"unit,omitempty"`
}

func (h *Handler) setTargetTemperature(c *fiber.Ctx) error {
	var req setTargetTemperatureRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, gwerrors.ErrValidation("invalid request body"))
	}

	device := deviceFromLocals(c)
	changed, err := device.SetTargetTemperature(c.Context(), req.Temperature, req.Unit, req.Unit != "")
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"changed_to": changed})
}

func (h *Handler) getTargetTemperature(c *fiber.Ctx) error {
	device := deviceFromLocals(c)
	if fromState(c) {
		return c.JSON(fiber.Map{"temperature": device.State().TargetTemperature})
	}
	t, err := device.GetTargetTemperature(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"temperature": t})
}

// --- start / stop ---

func (h *Handler) startDevice(c *fiber.Ctx) error {
	if _, err := deviceFromLocals(c).StartDevice(c.Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON("ok")
}

func (h *Handler) stopDevice(c *fiber.Ctx) error {
	if _, err := deviceFromLocals(c).StopDevice(c.Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON("ok")
}

// --- timer ---

type setTimerRequest struct {
	Minutes int `json:"minutes"`
}

func (h *Handler) setTimer(c *fiber.Ctx) error {
	var req setTimerRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, gwerrors.ErrValidation("invalid request body"))
	}

	minutes, err := deviceFromLocals(c).SetTimer(c.Context(), req.Minutes)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "timer set", "minutes": minutes})
}

func (h *Handler) startTimer(c *fiber.Ctx) error {
	if _, err := deviceFromLocals(c).StartTimer(c.Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON("ok")
}

func (h *Handler) stopTimer(c *fiber.Ctx) error {
	if _, err := deviceFromLocals(c).StopTimer(c.Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON("ok")
}

func (h *Handler) getTimer(c *fiber.Ctx) error {
	device := deviceFromLocals(c)
	if fromState(c) {
		state := device.State()
		return c.JSON(fiber.Map{"timer": fiber.Map{"minutes": state.TimerValue, "running": state.TimerRunning}})
	}
	status, err := device.GetTimerStatus(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"timer": fiber.Map{"minutes": status.Minutes, "running": status.Running}})
}

// --- alarm ---

func (h *Handler) clearAlarm(c *fiber.Ctx) error {
	if _, err := deviceFromLocals(c).ClearAlarm(c.Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON("ok")
}

// --- current temperature / unit / speaker ---

func (h *Handler) getCurrentTemperature(c *fiber.Ctx) error {
	device := deviceFromLocals(c)
	if fromState(c) {
		return c.JSON(fiber.Map{"temperature": device.State().CurrentTemperature})
	}
	t, err := device.GetCurrentTemperature(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"temperature": t})
}

func (h *Handler) getUnit(c *fiber.Ctx) error {
	device := deviceFromLocals(c)
	if fromState(c) {
		return c.JSON(fiber.Map{"unit": device.State().Unit})
	}
	unit, err := device.GetTemperatureUnit(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"unit": unit})
}

type setUnitRequest struct {
	Unit command.Unit `json:"unit"`
}

func (h *Handler) setUnit(c *fiber.Ctx) error {
	var req setUnitRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, gwerrors.ErrValidation("invalid request body"))
	}
	if _, err := deviceFromLocals(c).SetTemperatureUnit(c.Context(), req.Unit); err != nil {
		return writeError(c, err)
	}
	return c.JSON("ok")
}

func (h *Handler) getSpeakerStatus(c *fiber.Ctx) error {
	device := deviceFromLocals(c)
	if fromState(c) {
		return c.JSON(fiber.Map{"speaker_status": device.State().SpeakerStatus})
	}
	on, err := device.GetSpeakerStatus(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"speaker_status": on})
}

// fromState reports whether the caller asked for the cached device state
// rather than a fresh round trip to the appliance.
func fromState(c *fiber.Ctx) bool {
	v, err := strconv.ParseBool(c.Query("from_state", "false"))
	return err == nil && v
}

// --- SSE ---

func (h *Handler) streamEvents(c *fiber.Ctx) error {
	device := deviceFromLocals(c)
	h.service.metrics.SSESubscriberConnected()
	defer h.service.metrics.SSESubscriberDisconnected()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	ctx := c.Context()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		_ = h.service.hub.Stream(ctx, device.ID(), w, func() { _ = w.Flush() })
	})
	return nil
}

// --- server info ---

func (h *Handler) getServerInfo(c *fiber.Ctx) error {
	host := h.service.cfg.ServerHost
	if host == "" || host == "0.0.0.0" {
		if ip, err := localOutboundIP(); err == nil {
			host = ip
		}
	}
	return c.JSON(fiber.Map{"host": host, "port": h.service.cfg.ServerPort})
}

// --- BLE provisioning ---

func (h *Handler) getBLEDevice(c *fiber.Ctx) error {
	result, err := anovable.ScanDevice(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"address": result.Address, "name": result.Name})
}

type connectWifiRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

func (h *Handler) bleConnectWifi(c *fiber.Ctx) error {
	var req connectWifiRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, gwerrors.ErrValidation("invalid request body"))
	}

	err := anovable.WithSession(c.Context(), "", nil, func(s *anovable.Session) error {
		cmd, err := command.NewSetWifiCredentials(req.SSID, req.Password)
		if err != nil {
			return err
		}
		_, err = s.SendCommand(c.Context(), cmd)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON("ok")
}

type configWifiServerRequest struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

func (h *Handler) bleConfigWifiServer(c *fiber.Ctx) error {
	var req configWifiServerRequest
	if err := c.BodyParser(&req); err != nil {
		return writeError(c, gwerrors.ErrValidation("invalid request body"))
	}
	if req.Host == "" {
		if ip, err := localOutboundIP(); err == nil {
			req.Host = ip
		}
	}
	if req.Port == 0 {
		req.Port = h.service.cfg.ServerPort
	}

	err := anovable.WithSession(c.Context(), "", nil, func(s *anovable.Session) error {
		_, err := s.SendCommand(c.Context(), command.NewSetServerInfo(req.Host, req.Port))
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON("ok")
}

func (h *Handler) bleRestoreWifiServer(c *fiber.Ctx) error {
	err := anovable.WithSession(c.Context(), "", nil, func(s *anovable.Session) error {
		_, err := s.SendCommand(c.Context(), command.NewSetServerInfo("", 0))
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON("ok")
}

func (h *Handler) getBLEInfo(c *fiber.Ctx) error {
	result, err := anovable.ScanDevice(c.Context())
	if err != nil {
		return writeError(c, err)
	}

	info := fiber.Map{"ble_address": result.Address, "ble_name": result.Name}
	err = anovable.WithSession(c.Context(), result.Address, nil, func(s *anovable.Session) error {
		versionResp, err := s.SendCommand(c.Context(), command.NewGetVersion())
		if err != nil {
			return err
		}
		version, err := command.DecodeString(versionResp)
		if err != nil {
			return err
		}
		info["version"] = version

		idCardResp, err := s.SendCommand(c.Context(), command.NewGetIDCard())
		if err != nil {
			return err
		}
		idCard, err := command.DecodeIDCard(idCardResp)
		if err != nil {
			return err
		}
		info["id_card"] = idCard

		unitResp, err := s.SendCommand(c.Context(), command.NewGetTemperatureUnit())
		if err != nil {
			return err
		}
		unit, err := command.DecodeUnit(unitResp)
		if err != nil {
			return err
		}
		info["temperature_unit"] = unit

		speakerResp, err := s.SendCommand(c.Context(), command.NewGetSpeakerStatus())
		if err != nil {
			return err
		}
		speakerStatus, err := command.DecodeSpeakerStatus(speakerResp)
		if err != nil {
			return err
		}
		info["speaker_status"] = speakerStatus
		return nil
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(info)
}

func (h *Handler) bleSecretKey(c *fiber.Ctx) error {
	key, err := security.GenerateSecretKey()
	if err != nil {
		return writeError(c, gwerrors.ErrFatal("failed to generate secret key", err))
	}

	err = anovable.WithSession(c.Context(), "", nil, func(s *anovable.Session) error {
		cmd, err := command.NewSetSecretKey(key)
		if err != nil {
			return err
		}
		_, err = s.SendCommand(c.Context(), cmd)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"secret_key": key})
}
