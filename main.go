package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"

	"tabledb/internal/app"
	"tabledb/internal/config"
)

const usage = `Usage:
  tabledb [flags]        serve the HTTP API and form UI
  tabledb mcp [flags]    serve MCP tools on stdin/stdout

Flags:
`

func main() {
	args := os.Args[1:]
	mcpMode := len(args) > 0 && args[0] == "mcp"
	if mcpMode {
		args = args[1:]
	}

	fs := flag.NewFlagSet("tabledb", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	addr := fs.String("addr", "", "listen address, overrides the config file")
	dataDir := fs.String("data", "", "data directory, overrides the config file")
	backend := fs.String("backend", "", "storage backend: json or sqlite")
	staticDir := fs.String("static", "", "directory holding index.html and UI assets")
	open := fs.Bool("open", false, "open the UI in the default browser once listening")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *staticDir != "" {
		cfg.StaticDir = *staticDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	if mcpMode {
		if err := a.ServeMCP(ctx); err != nil {
			log.Printf("MCP server error: %v", err)
		}
		return
	}

	if *open {
		go func() {
			time.Sleep(300 * time.Millisecond)
			if err := browser.OpenURL("http://" + cfg.Addr); err != nil {
				log.Printf("open browser: %v", err)
			}
		}()
	}
	if err := a.Serve(ctx); err != nil {
		log.Printf("Server error: %v", err)
	}
}
