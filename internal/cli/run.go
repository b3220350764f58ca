// Package cli wires flags, config, and the HTTP server into the backlogd
// entry point. It owns process concerns (exit codes, signals, logging
// setup) so main stays a shim and everything here is testable.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/calvinalkan/backlog-webview/internal/backlog"
	"github.com/calvinalkan/backlog-webview/internal/config"
	"github.com/calvinalkan/backlog-webview/internal/fs"
	"github.com/calvinalkan/backlog-webview/internal/server"
)

// Log rotation bounds for --log-file.
const (
	logMaxSizeMB  = 10
	logMaxBackups = 3
)

// Run is the main entry point. Returns exit code.
func Run(out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	flags, err := parseFlags(args)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 2
	}

	if flags.help {
		printUsage(out)

		return 0
	}

	workDir, err := os.Getwd()
	if err != nil {
		fprintln(errOut, "error: cannot get working directory:", err)

		return 1
	}

	fsys := fs.NewReal()

	if flags.initConfig {
		return runInit(out, errOut, fsys, workDir)
	}

	cfg, err := config.Load(workDir, flags.configPath, flags.overrides, env)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	logger := newLogger(errOut, cfg.LogFile)

	productsRoot := cfg.ProductsRoot
	if !filepath.IsAbs(productsRoot) {
		productsRoot = filepath.Join(workDir, productsRoot)
	}

	svc := backlog.NewService(fsys, productsRoot)
	srv := server.New(svc, cfg.Port, logger)

	err = srv.Start()
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	fprintln(out, "backlogd listening on http://"+srv.Addr())
	fprintln(out, "products root:", productsRoot)

	sig := <-sigCh
	logger.Printf("received %s, shutting down", sig)

	err = srv.Shutdown()
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	return 0
}

// runInit writes a starter config file in workDir unless one already exists.
func runInit(out, errOut io.Writer, fsys fs.FS, workDir string) int {
	path := filepath.Join(workDir, config.ConfigFileName)

	exists, err := fsys.Exists(path)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if exists {
		fprintln(errOut, "error: config file already exists:", path)

		return 1
	}

	err = config.Save(fsys, path, config.DefaultConfig())
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	fprintln(out, "wrote", path)

	return 0
}

type cliFlags struct {
	configPath string
	overrides  config.Overrides
	initConfig bool
	help       bool
}

func parseFlags(args []string) (cliFlags, error) {
	var flags cliFlags

	fset := flag.NewFlagSet("backlogd", flag.ContinueOnError)
	fset.SetOutput(io.Discard)

	backlogRoot := fset.String("backlog-root", "", "products root directory")
	port := fset.Int("port", 0, "HTTP listen port")
	logFile := fset.String("log-file", "", "rotating log file path (default: stderr)")
	configPath := fset.String("config", "", "explicit config file path")
	help := fset.BoolP("help", "h", false, "show usage")

	err := fset.Parse(args)
	if err != nil {
		return cliFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	flags.help = *help
	flags.configPath = *configPath

	if fset.Changed("backlog-root") {
		flags.overrides.ProductsRoot = *backlogRoot
		flags.overrides.HasProductsRoot = true
	}

	if fset.Changed("port") {
		flags.overrides.Port = *port
		flags.overrides.HasPort = true
	}

	if fset.Changed("log-file") {
		flags.overrides.LogFile = *logFile
		flags.overrides.HasLogFile = true
	}

	for _, arg := range fset.Args() {
		switch arg {
		case "init":
			flags.initConfig = true
		default:
			return cliFlags{}, fmt.Errorf("unknown argument: %s", arg)
		}
	}

	return flags, nil
}

// newLogger writes to errOut, or to a rotating file when logFile is set.
func newLogger(errOut io.Writer, logFile string) *log.Logger {
	if logFile == "" {
		return log.New(errOut, "backlogd: ", log.LstdFlags)
	}

	return log.New(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
	}, "backlogd: ", log.LstdFlags)
}

func printUsage(out io.Writer) {
	fprintln(out, `backlogd - backlog webview server

Serves flat, tree, and kanban views over a products directory of markdown
backlog items.

Usage:
  backlogd [flags]
  backlogd init        write a starter .backlogd.json in the current directory

Flags:
  --backlog-root DIR   products root (default: _kano/backlog/products,
                       env: `+config.EnvProductsRoot+`)
  --port N             HTTP listen port (default: 8787, env: `+config.EnvPort+`)
  --config FILE        explicit config file (default: .backlogd.json if present)
  --log-file FILE      rotating log file (default: stderr)
  -h, --help           show this help`)
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}
