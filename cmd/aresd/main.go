// Command aresd is the ARES daemon: it loads a configuration snapshot,
// wires the Core API (pkg/ares.Service), and serves it over HTTP.
//
// Usage:
//
//	aresd serve --config ares.yaml
//	aresd version
package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"

	ares "github.com/neikan-bsn/ares"
	"github.com/neikan-bsn/ares/pkg/logger"
)

// CLI defines aresd's command-line interface as a kong command struct.
type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Start the ARES daemon."`
	Version VersionCmd `cmd:"" help:"Show version information."`

	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or custom)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	v := ares.GetVersion()
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			v.Version = info.Main.Version
		}
	}
	fmt.Println(v.String())
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("aresd"),
		kong.Description("Agent Reliability Enforcement System daemon"),
		kong.UsageOnError(),
	)

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	out := os.Stderr
	if cli.LogFile != "" {
		f, cleanup, ferr := logger.OpenLogFile(cli.LogFile)
		if ferr != nil {
			fmt.Fprintf(os.Stderr, "aresd: opening log file: %v\n", ferr)
			os.Exit(1)
		}
		defer cleanup()
		out = f
	}
	logger.Init(level, out, cli.LogFormat)

	if err := ctx.Run(); err != nil {
		slog.Error("aresd: command failed", "error", err)
		os.Exit(1)
	}
}
