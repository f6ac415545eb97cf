package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kardianos/service"
	"go.uber.org/zap"

	"docqa/core"
	"docqa/logging"
	"docqa/shutdown"
)

// serviceStopTimeout bounds how long Stop waits for run to return.
const serviceStopTimeout = 30 * time.Second

var serviceCommands = []string{"install", "uninstall", "start", "stop", "restart", "status"}

// program adapts run to the service manager's Start/Stop lifecycle.
type program struct {
	cfg     *core.Config
	logger  *logging.Logger
	manager *shutdown.Manager
	exit    chan struct{}
}

func (p *program) Start(service.Service) error {
	p.manager = shutdown.NewManager(context.Background(), p.logger)
	p.exit = make(chan struct{})
	go p.run()
	return nil
}

func (p *program) run() {
	defer close(p.exit)
	if err := run(p.manager, p.cfg, p.logger); err != nil {
		p.logger.Error("service stopped with error", zap.Error(err))
	}
}

func (p *program) Stop(service.Service) error {
	p.manager.Trigger()
	select {
	case <-p.exit:
	case <-time.After(serviceStopTimeout):
		p.logger.Warn("timeout waiting for service to stop")
	}
	return p.manager.Shutdown()
}

func serviceConfig() *service.Config {
	return &service.Config{
		Name:        "docqa",
		DisplayName: "docqa document Q&A",
		Description: "Extracts text from uploaded documents and websites and answers questions about it.",
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
}

func runAsService(cfg *core.Config, logger *logging.Logger) error {
	s, err := service.New(&program{cfg: cfg, logger: logger}, serviceConfig())
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	return s.Run()
}

// isServiceCommand reports whether arg is one of the service subcommands.
func isServiceCommand(arg string) bool {
	return slices.Contains(serviceCommands, arg)
}

// handleServiceCommand runs a service subcommand. It returns false when arg
// is not one.
func handleServiceCommand(arg string) (bool, error) {
	if !isServiceCommand(arg) {
		return false, nil
	}
	s, err := service.New(&program{logger: logging.NewNop()}, serviceConfig())
	if err != nil {
		return true, fmt.Errorf("failed to create service: %w", err)
	}

	if arg == "status" {
		status, err := s.Status()
		if err != nil {
			return true, fmt.Errorf("failed to get service status: %w", err)
		}
		fmt.Printf("Service status: %s\n", statusName(status))
		return true, nil
	}

	if err := service.Control(s, arg); err != nil {
		return true, fmt.Errorf("failed to %s service: %w", arg, err)
	}
	fmt.Printf("Service %s: ok\n", arg)
	return true, nil
}

func statusName(s service.Status) string {
	switch s {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
