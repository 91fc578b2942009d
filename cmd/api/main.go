package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"proposaldesk/internal/app"
	"proposaldesk/internal/config"
	"proposaldesk/internal/store"
)

func main() {
	issue := flag.String("issue-token", "", "print a bearer token for name:role and exit")
	flag.Parse()

	cfg := config.Load()

	if *issue != "" {
		name, role, _ := strings.Cut(*issue, ":")
		token, err := app.NewService(cfg, store.NewMemoryStore()).IssueToken(name, role)
		if err != nil {
			log.Fatalf("issue token: %v", err)
		}
		fmt.Println(token)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var dataStore store.Store
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if err := store.ApplyMigrations(ctx, db, store.Migrations()); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		log.Printf("Using PostgreSQL store")
		dataStore = store.NewPostgresStore(db)
	} else {
		log.Printf("DATABASE_URL not set; using in-memory store")
		dataStore = store.NewMemoryStore()
	}

	service := app.NewService(cfg, dataStore)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Proposal API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
