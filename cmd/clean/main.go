// Clean empties the triaged tickets directory so a run can start fresh.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/tickettriage/internal/ticket"
)

const appName = "ticket-triage"
const component = "clean"

func main() {
	if err := run(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run(stdout io.Writer) error {
	v.AppName = appName
	v.Component = component

	var (
		dir    string
		logCfg log.Config
	)
	flag.StringVar(&dir, "dir", "tickets-triaged", "directory to empty")
	logCfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg.FillFromEnv(flag.CommandLine, "TRIAGE_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := errors.Join(validateDir(dir), logCfg.Validate()); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = lg.Sync() }()

	return clean(context.Background(), lg.With("component", component), stdout, dir)
}

func validateDir(dir string) error {
	if dir == "" {
		return errors.New("dir is required")
	}
	return nil
}

func clean(ctx context.Context, L log.Logger, stdout io.Writer, dir string) error {
	n, err := ticket.Clean(dir)
	if err != nil {
		return err
	}
	L.Info(ctx, "removed triaged tickets", "dir", dir, "files", n)
	_, _ = fmt.Fprintf(stdout, "Cleaned the '%s' directory.\n", dir)
	return nil
}
