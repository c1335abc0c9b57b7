package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/audiolibrelab/robocapture/internal/device"
	"github.com/audiolibrelab/robocapture/internal/service"
	"github.com/audiolibrelab/robocapture/internal/session"
)

// Server exposes the recorder over HTTP
type Server struct {
	service service.Service
	port    int
	mux     *http.ServeMux

	// closed is signalled by POST /close so Start can return.
	closed chan struct{}
}

// New creates a new web server instance
func New(svc service.Service, port int) *Server {
	s := &Server{
		service: svc,
		port:    port,
		mux:     http.NewServeMux(),
		closed:  make(chan struct{}, 1),
	}

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/connect", s.handleConnect)
	s.mux.HandleFunc("/start", s.handleStart)
	s.mux.HandleFunc("/stop", s.handleStop)
	s.mux.HandleFunc("/camera", s.handleCamera)
	s.mux.HandleFunc("/audio", s.handleAudio)
	s.mux.HandleFunc("/options", s.handleOptions)
	s.mux.HandleFunc("/close", s.handleClose)
	s.mux.HandleFunc("/info", s.handleInfo)
	s.mux.HandleFunc("/history", s.handleHistory)
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until ctx is cancelled or a client posts /close.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	localIP := getLocalIP()
	slog.Info("Starting robocapture web server",
		"port", s.port,
		"local_url", fmt.Sprintf("http://%s:%d", localIP, s.port),
		"localhost_url", fmt.Sprintf("http://localhost:%d", s.port))

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	case <-s.closed:
		slog.Info("Close requested by client")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown web server: %w", err)
	}
	return nil
}

// handleIndex serves the control page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write([]byte(indexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.sendJSON(w, s.service.Status())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "connect")
		return
	}

	address := r.FormValue("address")
	port := 0
	if value := r.FormValue("port"); value != "" {
		p, err := strconv.Atoi(value)
		if err != nil || p <= 0 || p > 65535 {
			s.sendErrorResponse(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid port: %s", value), "operation", "connect")
			return
		}
		port = p
	}

	slog.Debug("Connect request received", "address", address, "port", port)
	if err := s.service.Connect(r.Context(), address, port); err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to connect: %v", err),
			"address", address, "port", port, "operation", "connect")
		return
	}

	s.sendSuccess(w, "Connected", nil)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.service.Start(r.Context()); err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to start recording: %v", err), "operation", "start")
		return
	}

	status := s.service.Status()
	extra := map[string]interface{}{}
	if status.Current != nil {
		extra["stem"] = status.Current.Stem
	}
	s.sendSuccess(w, "Recording", extra)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.service.Stop(r.Context()); err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to stop recording: %v", err), "operation", "stop")
		return
	}
	s.sendSuccess(w, string(s.service.Status().Display), nil)
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	id, err := s.service.SwitchCamera(r.Context())
	if err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to switch camera: %v", err), "operation", "switch_camera")
		return
	}
	s.sendSuccess(w, "Camera switched", map[string]interface{}{
		"camera":       device.CameraName(id),
		"camera_index": id,
	})
}

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	format, err := s.service.SwitchAudio()
	if err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to switch audio format: %v", err), "operation", "switch_audio")
		return
	}
	s.sendSuccess(w, "Audio format switched", map[string]interface{}{
		"audio_format": format.Extension(),
	})
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	if err := r.ParseForm(); err != nil {
		s.sendErrorResponse(w, http.StatusBadRequest, "Failed to parse form", "operation", "options")
		return
	}

	var update service.OptionsUpdate
	if _, ok := r.Form["label"]; ok {
		label := r.FormValue("label")
		update.Label = &label
	}
	for field, target := range map[string]**bool{
		"sonar_logging": &update.SonarLogging,
		"touch_logging": &update.TouchLogging,
	} {
		value := r.FormValue(field)
		if value == "" {
			continue
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			s.sendErrorResponse(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid %s: %s", field, value), "operation", "options")
			return
		}
		*target = &enabled
	}

	options, err := s.service.SetOptions(update)
	if err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to update options: %v", err), "operation", "options")
		return
	}
	s.sendSuccess(w, "Options updated", map[string]interface{}{"options": options})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodPost) {
		return
	}
	s.service.Close(r.Context())
	s.sendSuccess(w, "Closed", nil)

	select {
	case s.closed <- struct{}{}:
	default:
	}
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	s.sendJSON(w, s.service.Info(r.URL.Query().Get("label")))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.requireMethod(w, r, http.MethodGet) {
		return
	}
	limit := 20
	if value := r.URL.Query().Get("limit"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			s.sendErrorResponse(w, http.StatusBadRequest,
				fmt.Sprintf("Invalid limit: %s", value), "operation", "history")
			return
		}
		limit = n
	}

	records, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.sendErrorResponse(w, statusFor(err),
			fmt.Sprintf("Failed to read history: %v", err), "operation", "history")
		return
	}
	if records == nil {
		records = []session.Record{}
	}
	s.sendJSON(w, records)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var connErr *device.ConnectionError
	switch {
	case errors.As(err, &connErr):
		return http.StatusBadGateway
	case errors.Is(err, device.ErrNotConnected),
		errors.Is(err, session.ErrAlreadyRecording),
		errors.Is(err, session.ErrRecordingInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrHistoryDisabled):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusMethodNotAllowed)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   "Method not allowed",
	})
	return false
}

func (s *Server) sendSuccess(w http.ResponseWriter, message string, extra map[string]interface{}) {
	response := map[string]interface{}{
		"success": true,
		"message": message,
	}
	for k, v := range extra {
		response[k] = v
	}
	s.sendJSON(w, response)
}

func (s *Server) sendJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// sendErrorResponse logs the error and sends a JSON error response
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string, logContext ...interface{}) {
	// Log the error with structured context
	logFields := []interface{}{"error_message", errorMsg, "status_code", statusCode}
	if len(logContext) > 0 {
		logFields = append(logFields, logContext...)
	}
	slog.Error("Sending error response to client", logFields...)

	// Send JSON error response
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   errorMsg,
	})
}

func getLocalIP() string {
	// Try to connect to a remote address to determine local IP
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "localhost"
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String()
}
