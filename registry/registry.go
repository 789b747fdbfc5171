// Package registry provides the in-process Voice Assistant Protocol (VAP)
// skill registry: a CoAP/MessagePack mediator between a host voice
// assistant core and dynamic remote skills.
//
// This package contains:
//
//   - Wire codec and message types (codec.go, messages.go) — CoAP payload
//     serialization
//   - CoAP dispatcher (server.go) — component D, routes inbound skill
//     requests
//   - Outbound self-loop pusher (pusher.go) — component E, drives CoAP
//     Observe pushes
//   - Host-facing event bridge (bridge.go) — component F, the API the
//     embedding host programs against
//   - Supporting state: attached-skill directory (directory.go), request
//     correlation tables (pending.go), id allocation (ids.go), and the
//     inbound/outbound startup barrier (barrier.go, component G)
//
// # Embedding
//
// A host process creates a Registry with New, drains HostBridge.Events()
// to learn about connecting skills and route their notifications, and
// calls Run to serve CoAP traffic until the context is canceled or a
// termination signal arrives.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"vap.design/skillregistry/telemetry"
)

type (
	// Registry is the main entry point for the VAP skill registry. It
	// owns the CoAP dispatcher, the outbound self-loop pusher, and the
	// shared state those two components coordinate through (directory,
	// pending tables, id allocator, readiness barrier).
	Registry struct {
		bridge    *HostBridge
		server    *Server
		pusher    *Pusher
		directory *Directory
		barrier   *ReadyBarrier
		addr      string
	}

	// Config configures the registry.
	Config struct {
		// BindAddr is the network address the CoAP server binds and the
		// pusher's self-loop dials. Defaults to "127.0.0.1" if not provided.
		BindAddr string
		// Port is the UDP port for CoAP traffic. Defaults to 5683 (the
		// standard CoAP port) if not provided.
		Port int
		// EventCapacity bounds the HostBridge's inbound event channel.
		// Defaults to 20 if not provided (spec §5).
		EventCapacity int
		// Logger receives registry diagnostic logs. When nil, logging is
		// suppressed.
		Logger telemetry.Logger
		// Tracer instruments registry operations. When nil, tracing is a
		// no-op.
		Tracer telemetry.Tracer
		// Metrics records registry counters/timers. When nil, metrics are
		// discarded.
		Metrics telemetry.Metrics
	}
)

// New creates a new Registry with all components wired together. It does
// not bind any socket; call Run to start serving.
//
// The caller is responsible for calling Close() when done to release
// resources, unless Run is used, which calls Close on its own exit path.
func New(_ context.Context, cfg Config) (*Registry, error) {
	bindAddr := cfg.BindAddr
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 5683
	}
	eventCapacity := cfg.EventCapacity
	if eventCapacity == 0 {
		eventCapacity = 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = telemetry.NewNoopTracer()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewNoopMetrics()
	}
	tel := telemetry.RegistryTelemetry{Logger: logger, Tracer: tracer, Metrics: metrics}

	addr := fmt.Sprintf("%s:%d", bindAddr, port)

	directory := NewDirectory()
	ids := NewIDAllocator()
	codec := NewCodec()
	activation := NewPendingTable[ActivationReply]()
	canAnswer := NewPendingTable[float32]()
	barrier := NewReadyBarrier()

	pusher := NewPusher(addr, barrier, tel)
	bridge := NewHostBridge(ids, activation, canAnswer, pusher, codec, eventCapacity, logger, tracer)
	server := NewServer(addr, bridge, directory, codec, canAnswer, activation, pusher, barrier, tel)

	return &Registry{
		bridge:    bridge,
		server:    server,
		pusher:    pusher,
		directory: directory,
		barrier:   barrier,
		addr:      addr,
	}, nil
}

// Bridge returns the host-facing event bridge. Embedding hosts drain
// Bridge().Events() and call Bridge().ActivateSkill /
// Bridge().SkillsAnswerable to drive attached skills.
func (r *Registry) Bridge() *HostBridge {
	return r.bridge
}

// Close releases all resources held by the registry, including the
// pusher's self-connection.
func (r *Registry) Close(_ context.Context) error {
	var errs []error
	if err := r.pusher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pusher: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Run starts the CoAP server and blocks until the context is canceled, a
// termination signal is received, or the server stops unexpectedly. It
// handles graceful shutdown automatically, including releasing the
// registry's resources on every exit path.
//
// Example:
//
//	reg, _ := registry.New(ctx, registry.Config{Port: 5683})
//	go drainEvents(reg.Bridge())
//	if err := reg.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
func (r *Registry) Run(ctx context.Context) error {
	serverCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.server.ListenAndServe(serverCtx)
	}()

	var runErr error
	serverExited := false
	select {
	case <-ctx.Done():
	case <-sigCh:
	case err := <-errCh:
		serverExited = true
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	}

	cancel()
	if !serverExited {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			runErr = err
		}
	}

	if err := r.Close(ctx); err != nil {
		return errors.Join(runErr, fmt.Errorf("close registry: %w", err))
	}
	return runErr
}
