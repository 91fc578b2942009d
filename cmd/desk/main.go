package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"proposaldesk/internal/autosave"
	"proposaldesk/internal/client"
	"proposaldesk/internal/config"
	"proposaldesk/internal/connectivity"
	"proposaldesk/internal/offline"
	"proposaldesk/internal/proposal"
	"proposaldesk/internal/ui"
)

func main() {
	configPath := flag.String("config", config.DefaultClientConfigPath, "path to desk.toml")
	proposalID := flag.String("proposal", "", "id of the proposal to edit")
	companyID := flag.String("company", "", "create a new proposal for this company")
	title := flag.String("title", "Untitled proposal", "title of a new proposal")
	logPath := flag.String("log", "", "write logs to this file")
	flag.Parse()

	if err := run(*configPath, *proposalID, *companyID, *title, *logPath); err != nil {
		log.Fatalf("desk: %v", err)
	}
}

func run(configPath, proposalID, companyID, title, logPath string) error {
	if proposalID == "" && companyID == "" {
		return errors.New("either -proposal or -company is required")
	}

	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := openLogger(logPath)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.APIURL, cfg.Token, nil)
	current, err := loadProposal(ctx, api, proposalID, companyID, title)
	if err != nil {
		return err
	}

	backups, err := openBackups(cfg)
	if err != nil {
		return err
	}
	defer backups.Close()

	monitor := connectivity.NewMonitor(api.Health(ctx) == nil, logger)
	session := api.OpenSession(ctx, current, backups, monitor, autosave.Options{
		Delay:  cfg.Debounce,
		Logger: logger,
	})
	defer session.Close()
	go monitor.Probe(ctx, cfg.ProbeInterval, api.Health)

	opts := ui.Options{
		Context:     ctx,
		Proposal:    current,
		Autosave:    session.Autosave,
		Tracker:     session.Tracker,
		Transitions: api,
		Network:     monitor,
		Initial:     session.Restored,
	}
	return ui.Run(ctx, opts)
}

func loadProposal(ctx context.Context, api *client.Client, proposalID, companyID, title string) (proposal.Proposal, error) {
	if proposalID != "" {
		p, err := api.GetProposal(ctx, proposalID)
		if err != nil {
			return proposal.Proposal{}, fmt.Errorf("load proposal %s: %w", proposalID, err)
		}
		return p, nil
	}
	p, err := api.CreateProposal(ctx, companyID, proposal.Content{Title: title})
	if err != nil {
		return proposal.Proposal{}, fmt.Errorf("create proposal: %w", err)
	}
	return p, nil
}

func openBackups(cfg config.Client) (offline.Store, error) {
	if cfg.RedisURL != "" {
		return offline.NewRedisStore(cfg.RedisURL)
	}
	return offline.NewFileStore(cfg.OfflineDir)
}

// openLogger discards logs unless path is set; the terminal belongs to the
// editor.
func openLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { _ = file.Close() }, nil
}
