// Package simulator serves the broker protocol from an in-process robot so
// the recorder can be developed and tested without hardware.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/audiolibrelab/robocapture/internal/broker"
	"github.com/audiolibrelab/robocapture/internal/clock"
	"github.com/audiolibrelab/robocapture/internal/sensor"
)

// AllModules are the services a full platform offers.
var AllModules = []string{
	broker.ModuleVideoRecorder,
	broker.ModuleAudioDevice,
	broker.ModuleSonar,
	broker.ModuleMemory,
}

// Options configure a Server. Zero values select every module, the
// default keys and the real clock.
type Options struct {
	Modules []string
	Keys    sensor.Keys
	Clock   clock.Clock
}

// Server accepts broker connections and answers them from a Platform.
type Server struct {
	platform *Platform
	log      *slog.Logger
	latency  atomic.Int64

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// New creates a server that is not yet listening.
func New(opts Options) *Server {
	if opts.Modules == nil {
		opts.Modules = AllModules
	}
	if opts.Keys.SonarLeft == "" {
		opts.Keys = sensor.DefaultKeys
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Server{
		platform: newPlatform(opts.Modules, opts.Keys, opts.Clock),
		log:      slog.Default().With("component", "simulator"),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Platform returns the simulated robot.
func (s *Server) Platform() *Platform {
	return s.platform
}

// SetLatency delays every response by d.
func (s *Server) SetLatency(d time.Duration) {
	s.latency.Store(int64(d))
}

// Listen binds addr, e.g. "127.0.0.1:0".
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.log.Info("Simulator listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// HostPort splits the bound address for dialing.
func (s *Server) HostPort() (string, int) {
	tcp, ok := s.Addr().(*net.TCPAddr)
	if !ok {
		return "", 0
	}
	return tcp.IP.String(), tcp.Port
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("simulator is not listening")
	}

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handle(conn)
	}
}

// Close stops accepting, drops open connections and waits for handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	remote := conn.RemoteAddr().String()
	s.log.Debug("Client connected", "remote", remote)

	dec := broker.NewDecoder(conn)
	enc := broker.NewEncoder(conn)
	for {
		var request broker.Request
		if err := dec.Decode(&request); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.log.Debug("Dropping client", "remote", remote, "error", err)
			}
			return
		}

		response := s.dispatch(request)
		if err := enc.Encode(response); err != nil {
			s.log.Debug("Failed to write response", "remote", remote, "error", err)
			return
		}
	}
}

func (s *Server) dispatch(request broker.Request) broker.Response {
	if d := time.Duration(s.latency.Load()); d > 0 {
		time.Sleep(d)
	}

	result, err := s.platform.Handle(request.Module, request.Method, request.Args)
	if err != nil {
		s.log.Debug("Call failed", "module", request.Module, "method", request.Method, "error", err)
		return broker.Response{ID: request.ID, Error: err.Error()}
	}

	response := broker.Response{ID: request.ID, OK: true}
	if result != nil {
		raw, err := broker.Marshal(result)
		if err != nil {
			return broker.Response{ID: request.ID, Error: fmt.Sprintf("encoding result: %v", err)}
		}
		response.Result = raw
	}
	return response
}
