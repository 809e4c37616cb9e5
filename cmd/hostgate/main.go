package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/hostgate/internal/config"
	"github.com/hpungsan/hostgate/internal/db"
	"github.com/hpungsan/hostgate/internal/intercept"
	"github.com/hpungsan/hostgate/internal/logger"
	"github.com/hpungsan/hostgate/internal/mcp"
	"github.com/hpungsan/hostgate/internal/ops"
	"github.com/hpungsan/hostgate/internal/query"
	"github.com/hpungsan/hostgate/internal/usage"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// homeEnv overrides the data directory.
const homeEnv = "HOSTGATE_HOME"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"folder": true, "rule": true, "intercept": true, "record": true,
	"history": true, "usage": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  _               _               _
 | |__   ___  ___| |_ __ _  __ _| |_ ___
 | '_ \ / _ \/ __| __/ _' |/ _' | __/ _ \
 | | | | (_) \__ \ || (_| | (_| | ||  __/
 |_| |_|\___/|___/\__\__, |\__,_|\__\___|
                     |___/
  Per-host link routing rules

  Usage: hostgate <command> [options]
         hostgate --help

  MCP server mode requires piped input.`)
}

// extractDirFlag strips a leading --dir flag from args. It must come before
// the subcommand: hostgate --dir /tmp/hg rule list.
func extractDirFlag(args []string) (string, []string, error) {
	if len(args) < 2 {
		return "", args, nil
	}
	arg := args[1]
	switch {
	case arg == "--dir":
		if len(args) < 3 || strings.TrimSpace(args[2]) == "" {
			return "", nil, fmt.Errorf("--dir requires a path")
		}
		return args[2], append([]string{args[0]}, args[3:]...), nil
	case strings.HasPrefix(arg, "--dir="):
		dir := strings.TrimPrefix(arg, "--dir=")
		if strings.TrimSpace(dir) == "" {
			return "", nil, fmt.Errorf("--dir requires a path")
		}
		return dir, append([]string{args[0]}, args[2:]...), nil
	}
	return "", args, nil
}

// resolveBaseDir returns the --dir value, $HOSTGATE_HOME or ~/.hostgate.
func resolveBaseDir(flagDir string) (string, error) {
	if dir := strings.TrimSpace(flagDir); dir != "" {
		return dir, nil
	}
	if dir := strings.TrimSpace(os.Getenv(homeEnv)); dir != "" {
		return dir, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".hostgate"), nil
}

// bootstrap opens the store and wires every service. The returned close
// function flushes background work and releases resources.
func bootstrap(ctx context.Context, baseDir string) (mcp.Deps, func(), error) {
	cfg, err := config.Load(baseDir)
	if err != nil {
		return mcp.Deps{}, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.PrettyLog)
	if err != nil {
		return mcp.Deps{}, nil, fmt.Errorf("failed to build logger: %w", err)
	}

	store, err := db.Open(baseDir, log)
	if err != nil {
		return mcp.Deps{}, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db.ConfigurePool(store.DB(), cfg)

	fail := func(err error) (mcp.Deps, func(), error) {
		_ = store.Close()
		return mcp.Deps{}, nil, err
	}

	if err := ops.EnsureDefaultFolders(ctx, store, log); err != nil {
		return fail(fmt.Errorf("failed to seed default folders: %w", err))
	}

	if cfg.HistoryRetentionDays > 0 {
		out, err := ops.PurgeHistory(ctx, store, ops.PurgeHistoryInput{OlderThanDays: cfg.HistoryRetentionDays})
		if err != nil {
			log.Warn("history retention purge failed", logger.Error(err))
		} else if out.Purged > 0 {
			log.Info("history retention purge", logger.Int("purged", out.Purged),
				logger.Int("retention_days", cfg.HistoryRetentionDays))
		}
	}

	counter, closeCounter, err := usage.New(ctx, cfg, store, log)
	if err != nil {
		return fail(fmt.Errorf("failed to set up usage counter: %w", err))
	}

	engine := intercept.New(store, store, counter, log)

	deps := mcp.Deps{
		Store:   store,
		Config:  cfg,
		Log:     log,
		Query:   query.NewBuilder(log, cfg.UnknownGroupLabel),
		Engine:  engine,
		Counter: counter,
	}
	closeAll := func() {
		engine.Wait()
		if err := closeCounter(); err != nil {
			log.Warn("failed to close usage counter", logger.Error(err))
		}
		_ = store.Close()
		_ = log.Sync()
	}
	return deps, closeAll, nil
}

func main() {
	flagDir, args, err := extractDirFlag(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	os.Args = args

	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(mcp.Deps{})
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if !isCLIMode() && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'hostgate --help' for usage.\n")
		os.Exit(1)
	}

	baseDir, err := resolveBaseDir(flagDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	deps, closeAll, err := bootstrap(context.Background(), baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if isCLIMode() {
		app := newCLIApp(deps)
		err = app.Run(os.Args)
		closeAll()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// MCP server mode (default)
	if unknown := mcp.ValidateDisabledTools(deps.Config.DisabledTools); len(unknown) > 0 {
		deps.Log.Warn("ignoring unknown disabled tools", logger.Strings("tools", unknown))
	}
	err = mcp.Run(deps, Version)
	closeAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
