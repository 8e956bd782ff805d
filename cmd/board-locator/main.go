package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/board-locator-mcp/internal/config"
	"github.com/ironsheep/board-locator-mcp/internal/imaging"
	"github.com/ironsheep/board-locator-mcp/internal/locator"
	"github.com/ironsheep/board-locator-mcp/internal/logger"
	"github.com/ironsheep/board-locator-mcp/internal/server"
	"github.com/ironsheep/board-locator-mcp/internal/transport"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("board-locator %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printUsage()
			return
		case "locate":
			if err := runLocate(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "locate: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)

	if Version != "dev" {
		server.Version = Version
	}

	logger.WithFields(logrus.Fields{
		"version":    Version,
		"build_time": BuildTime,
		"commit":     GitCommit,
		"transport":  cfg.Transport,
	}).Debug("Starting board locator")

	switch cfg.Transport {
	case config.TransportHTTP:
		runHTTP(cfg)
	default:
		srv := server.NewWithConfig(cfg)
		if err := srv.Run(); err != nil {
			logger.WithError(err).Fatal("Server error")
		}
	}
}

func printUsage() {
	fmt.Println("board-locator - locate markers on a photographed game board")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  board-locator                             Serve MCP on stdin/stdout (or HTTP, see below)")
	fmt.Println("  board-locator locate <image> [magnification]  Print marker positions as JSON")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  BOARD_LOCATOR_TRANSPORT=mcp|http      Protocol to serve (default mcp)")
	fmt.Println("  BOARD_LOCATOR_LOG_LEVEL=debug         Log verbosity on stderr (default info)")
	fmt.Println("  BOARD_LOCATOR_MAGNIFICATION=6         Rectified pixels per board unit")
	fmt.Println("  BOARD_LOCATOR_MAX_MAGNIFICATION=60    Largest magnification a request may ask for")
	fmt.Println("  BOARD_LOCATOR_REQUIRED_MARKERS=4      Fiducials needed before rectifying (4-9)")
	fmt.Println("  HOST, PORT                            HTTP listen address (default 0.0.0.0:8080)")
	fmt.Println("  REQUEST_TIMEOUT=30s                   HTTP processing timeout")
	fmt.Println("  MAX_REQUEST_BODY_SIZE=20971520        HTTP upload limit in bytes")
}

// runLocate handles "locate <image> [magnification]".
func runLocate(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: board-locator locate <image> [magnification]")
	}

	magnification := locator.DefaultMagnification
	if len(args) == 2 {
		m, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid magnification %q: %w", args[1], err)
		}
		magnification = m
	}

	img, err := imaging.NewImageCache().Load(args[0])
	if err != nil {
		return err
	}

	positions, err := locator.GetMarkerPositions(img, magnification)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(positions)
}

func runHTTP(cfg *config.Config) {
	srv := &http.Server{
		Addr:         cfg.ServerAddress(),
		Handler:      transport.NewHandler(cfg, cfg.LocatorOptions()),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"address": cfg.ServerAddress(),
			"timeout": cfg.RequestTimeout,
		}).Info("Starting HTTP server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
