// SmartClinic is a hospital assistant agent.
//
// It answers questions about doctor specialties and appointments by
// combining a local language model with the hospital information
// system's REST API, and serves a chat page with a live agent log.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	smartclinic serve            Start the HTTP server
//	smartclinic ask <question>   Ask a single question (for testing)
//	smartclinic version          Print version and build information
//	smartclinic -o json version  Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/ivivacare/smartclinic/internal/agent"
	"github.com/ivivacare/smartclinic/internal/api"
	"github.com/ivivacare/smartclinic/internal/buildinfo"
	"github.com/ivivacare/smartclinic/internal/config"
	"github.com/ivivacare/smartclinic/internal/decisionlog"
	"github.com/ivivacare/smartclinic/internal/hospital"
	"github.com/ivivacare/smartclinic/internal/llm"
	"github.com/ivivacare/smartclinic/internal/logstream"
	"github.com/ivivacare/smartclinic/internal/tools"
)

// main constructs the OS-level environment (context, stdio, argv) and
// delegates to [run], keeping os.Exit and os.Args out of the
// application logic so the lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which makes run() impossible
// to call concurrently from tests, and the argument surface here is
// small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: smartclinic ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "SmartClinic - Hospital Assistant Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: smartclinic [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the HTTP server")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  "+strings.Join(config.DefaultSearchPaths(), ", "))
	return nil
}

// runAsk boots a minimal agent (no server, no decision log) and
// processes a single question, printing the answer to stdout. Useful
// for smoke tests without starting the server.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := newLogger(stdout, level, "text")
	logger.Info("config loaded", "path", cfgPath)

	a := buildAgent(cfg, logger)
	question := strings.Join(args, " ")
	fmt.Fprintln(stdout, a.Chat(ctx, question))
	return nil
}

// runServe starts the HTTP server and blocks until shutdown.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	// All log records also flow to the web UI's live log view.
	broadcaster := logstream.NewBroadcaster(logstream.DefaultReplay)
	base := slog.NewTextHandler(stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})
	logger := slog.New(logstream.NewHandler(base, broadcaster))

	logger.Info(buildinfo.String())
	logger.Info("config loaded", "path", cfgPath)

	model, registry := buildClients(cfg, logger)

	var decisions *decisionlog.Store
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
		decisions, err = decisionlog.NewStore(filepath.Join(cfg.DataDir, "decisions.db"))
		if err != nil {
			return fmt.Errorf("open decision log: %w", err)
		}
		defer decisions.Close()
		logger.Info("decision log opened", "dir", cfg.DataDir)
	} else {
		logger.Info("decision log disabled (no data_dir configured)")
	}

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, model, registry,
		decisions, broadcaster, logger)

	// SIGINT/SIGTERM cancellation flows through the same ctx used by
	// all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("SmartClinic stopped")
	return nil
}

// buildClients constructs the shared model client and tool registry.
func buildClients(cfg *config.Config, logger *slog.Logger) (llm.Client, *tools.Registry) {
	model := llm.NewOpenAIClient(
		cfg.LLM.Endpoint,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		logger,
	)
	his := hospital.NewClient(cfg.Hospital.BaseURL, cfg.Hospital.Token, cfg.Hospital.VisitID, logger)
	return model, tools.NewRegistry(his, logger)
}

func buildAgent(cfg *config.Config, logger *slog.Logger) *agent.Agent {
	model, registry := buildClients(cfg, logger)
	return agent.New(model, registry, logger)
}

// newLogger creates a structured logger writing to w at the given
// level and format. Format must be "text" or "json"; anything else
// defaults to text.
func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// loadConfig locates and parses the YAML configuration file. If
// explicit is non-empty that exact path is used; otherwise
// [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
