package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/audiolibrelab/wffcapture/internal/config"
	"github.com/audiolibrelab/wffcapture/internal/service"
	"github.com/audiolibrelab/wffcapture/internal/session"
)

// startGrace is how long /start waits for an immediate result before
// answering 202 for a running countdown.
const startGrace = 250 * time.Millisecond

// FiberServer is the HTTP remote control for a recording service.
type FiberServer struct {
	*fiber.App
	service    service.Service
	configFile string
}

// StartRequest is the body of POST /start. Profile switches the active
// profile before starting; the remaining fields override it.
type StartRequest struct {
	Profile string `json:"profile,omitempty"`
	service.StartOptions
}

// ProfileRequest is the body of POST /profile.
type ProfileRequest struct {
	Profile string `json:"profile"`
}

// StatusResponse represents the JSON response for status endpoint
type StatusResponse struct {
	service.Status
	Message string `json:"message,omitempty"`
}

// New creates the fiber app and registers the routes.
func New(svc service.Service, configFile string) *FiberServer {
	app := fiber.New(fiber.Config{
		ServerHeader:          "wffcapture",
		AppName:               "wffcapture",
		DisableStartupMessage: true,
	})

	s := &FiberServer{
		App:        app,
		service:    svc,
		configFile: configFile,
	}
	s.RegisterRoutes()
	return s
}

func (s *FiberServer) RegisterRoutes() {
	s.App.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Accept,Content-Type",
		MaxAge:       300,
	}))

	s.App.Post("/start", s.handleStart)
	s.App.Post("/cancel", s.handleCancel)
	s.App.Post("/stop", s.handleStop)
	s.App.Get("/status", s.handleStatus)
	s.App.Get("/profiles", s.handleProfiles)
	s.App.Post("/profile", s.handleSelectProfile)
	s.App.Post("/region", s.handleRegion)
}

// Start listens on port until the app is shut down.
func (s *FiberServer) Start(port string) error {
	slog.Info("Starting wffcapture remote control",
		"port", port,
		"local_url", fmt.Sprintf("http://%s:%s", getLocalIP(), port),
		"localhost_url", fmt.Sprintf("http://localhost:%s", port))

	return s.App.Listen(":" + port)
}

// handleStart begins a session. A session without countdown answers 200
// once the recorder runs; a pending countdown answers 202.
func (s *FiberServer) handleStart(c *fiber.Ctx) error {
	var req StartRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return sendError(c, fiber.StatusBadRequest, "Failed to parse request body", "operation", "start")
		}
	}

	if req.Profile != "" && req.Profile != s.service.GetConfig().Profile {
		if err := s.service.LoadProfile(req.Profile); err != nil {
			return sendError(c, statusFor(err), err.Error(), "profile", req.Profile, "operation", "profile_load_for_start")
		}
	}

	if s.service.GetRecordingStatus().State.Active() {
		return sendError(c, fiber.StatusConflict, service.ErrBusy.Error(), "operation", "start")
	}

	// The session outlives the request, so it gets its own context.
	result := make(chan error, 1)
	go func() {
		result <- s.service.StartRecording(context.Background(), req.StartOptions)
	}()

	select {
	case err := <-result:
		if err != nil {
			return sendError(c, statusFor(err), fmt.Sprintf("Failed to start recording: %v", err), "operation", "start")
		}
		st := s.service.GetRecordingStatus()
		if st.State == session.Cancelled {
			return c.JSON(fiber.Map{"success": true, "message": "Countdown cancelled", "session_id": st.SessionID})
		}
		return c.JSON(fiber.Map{"success": true, "message": "Recording started", "session_id": st.SessionID})
	case <-time.After(startGrace):
		st := s.service.GetRecordingStatus()
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"success":    true,
			"message":    "Countdown started",
			"session_id": st.SessionID,
		})
	}
}

func (s *FiberServer) handleCancel(c *fiber.Ctx) error {
	if err := s.service.CancelCountdown(); err != nil {
		return sendError(c, statusFor(err), fmt.Sprintf("Failed to cancel countdown: %v", err), "operation", "cancel")
	}
	return c.JSON(fiber.Map{"success": true, "message": "Countdown cancelled"})
}

func (s *FiberServer) handleStop(c *fiber.Ctx) error {
	if err := s.service.StopRecording(c.UserContext()); err != nil {
		return sendError(c, statusFor(err), fmt.Sprintf("Failed to stop recording: %v", err), "operation", "stop")
	}
	st := s.service.GetRecordingStatus()
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  "Recording stopped",
		"elapsed":  st.Elapsed,
		"filename": st.Filename,
	})
}

func (s *FiberServer) handleStatus(c *fiber.Ctx) error {
	st := s.service.GetRecordingStatus()
	return c.JSON(StatusResponse{Status: st, Message: statusMessage(st)})
}

func (s *FiberServer) handleProfiles(c *fiber.Ctx) error {
	if s.configFile == "" {
		return c.JSON(fiber.Map{"profiles": []string{s.service.GetConfig().Profile}})
	}
	profiles, err := config.ListProfiles(s.configFile)
	if err != nil {
		return sendError(c, fiber.StatusInternalServerError, fmt.Sprintf("Failed to list profiles: %v", err), "operation", "profiles")
	}
	return c.JSON(fiber.Map{"profiles": profiles, "active_profile": s.service.GetConfig().Profile})
}

func (s *FiberServer) handleSelectProfile(c *fiber.Ctx) error {
	var req ProfileRequest
	if err := c.BodyParser(&req); err != nil || req.Profile == "" {
		return sendError(c, fiber.StatusBadRequest, "Profile name is required", "operation", "select_profile")
	}
	if err := s.service.LoadProfile(req.Profile); err != nil {
		return sendError(c, statusFor(err), err.Error(), "profile", req.Profile, "operation", "select_profile")
	}
	return c.JSON(fiber.Map{"success": true, "message": "Profile loaded", "profile": req.Profile})
}

func (s *FiberServer) handleRegion(c *fiber.Ctx) error {
	r, err := s.service.SelectRegion(c.UserContext())
	if err != nil {
		return sendError(c, fiber.StatusUnprocessableEntity, fmt.Sprintf("Region selection failed: %v", err), "operation", "region")
	}
	return c.JSON(fiber.Map{"success": true, "region": r})
}

func statusMessage(st service.Status) string {
	switch st.State {
	case session.CountingDown:
		return "Countdown in progress"
	case session.Recording:
		return fmt.Sprintf("Recording in progress - %s", st.Filename)
	case session.Stopped:
		if st.LastError != "" {
			return st.LastError
		}
		return "Recording stopped"
	case session.Cancelled:
		if st.LastError != "" {
			return st.LastError
		}
		return "Countdown cancelled"
	default:
		return ""
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBusy),
		errors.Is(err, service.ErrNotCountingDown),
		errors.Is(err, service.ErrNotRecording),
		errors.Is(err, service.ErrProfileWhileBusy):
		return fiber.StatusConflict
	case errors.Is(err, config.ErrProfileNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrInvalidOptions),
		errors.Is(err, service.ErrNoConfigFile):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// sendError logs the error and sends a JSON error response to the client
func sendError(c *fiber.Ctx, statusCode int, errorMsg string, logContext ...any) error {
	logFields := []any{"error_message", errorMsg, "status_code", statusCode}
	logFields = append(logFields, logContext...)
	slog.Error("Sending error response to client", logFields...)

	return c.Status(statusCode).JSON(fiber.Map{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
