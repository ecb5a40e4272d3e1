// Package telemetry exposes the control plane's pprof debug surface.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"time"

	"github.com/rosterhq/control-plane/internal/logger"
)

// Telemetry holds a process's observability endpoints.
type Telemetry struct {
	log       *logger.Logger
	pprofAddr string
}

// New builds Telemetry bound to localhost:pprofPort.
func New(pprofPort int, log *logger.Logger) *Telemetry {
	return &Telemetry{
		log:       log,
		pprofAddr: fmt.Sprintf("localhost:%d", pprofPort),
	}
}

// Start launches the pprof server on its own goroutine. A failure here
// never aborts process startup — pprof is a debugging aid, not a
// dependency any component relies on.
func (t *Telemetry) Start(ctx context.Context) error {
	go func() {
		t.log.Info("pprof server starting", "addr", t.pprofAddr)
		if err := http.ListenAndServe(t.pprofAddr, nil); err != nil {
			t.log.Error("pprof server error", "error", err)
		}
	}()
	return nil
}

// RecordDuration logs how long operation took, since start.
func (t *Telemetry) RecordDuration(operation string, start time.Time) {
	t.log.Debug("operation completed", "operation", operation, "duration_ms", time.Since(start).Milliseconds())
}
