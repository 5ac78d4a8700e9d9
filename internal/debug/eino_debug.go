package debug

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/yikai/QuorumGo/config"
)

// EinoDebugger exposes the eino visual debug server for inspecting backend
// calls. Off by default; it binds a local port when enabled.
type EinoDebugger struct {
	cfg *config.Config
	ctx context.Context
}

func NewEinoDebugger(cfg *config.Config) *EinoDebugger {
	return &EinoDebugger{cfg: cfg, ctx: context.Background()}
}

func (d *EinoDebugger) Initialize() error {
	if !d.cfg.EinoDebugEnabled {
		return nil
	}

	if err := devops.Init(d.ctx); err != nil {
		return fmt.Errorf("initialize eino debug plugin: %w", err)
	}
	if d.cfg.Debug {
		log.Printf("[EinoDebug] debug server listening at %s", d.DebugURL())
	}
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.cfg.EinoDebugEnabled
}

func (d *EinoDebugger) DebugURL() string {
	if !d.cfg.EinoDebugEnabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.cfg.EinoDebugPort)
}
