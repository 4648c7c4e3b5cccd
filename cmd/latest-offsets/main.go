// Command latest-offsets prints the latest record offset and timestamp of
// every partition of a Kafka topic, authenticating to Amazon MSK with IAM.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	offsets "github.com/hugolhafner/go-offsets"
	"github.com/hugolhafner/go-offsets/internal/config"
	"github.com/hugolhafner/go-offsets/plugins/zaplogger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, nil)
	stop()
	os.Exit(code)
}

// run executes one inspection and returns the process exit code. Result lines
// go to stdout, logs and errors to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, extra []offsets.ConfigOption) int {
	cfg, err := config.Parse("latest-offsets", args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return offsets.ExitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return offsets.ExitUsage
	}

	log, zl, err := zaplogger.NewConsole(cfg.Level())
	if err != nil {
		fmt.Fprintf(stderr, "Error: build logger: %v\n", err)
		return offsets.ExitFailure
	}
	defer func() { _ = zl.Sync() }()

	opts := append(cfg.Options(), offsets.WithLogger(log))
	app, err := offsets.NewApplication(append(opts, extra...)...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return offsets.ExitCode(err)
	}

	if err := app.Run(ctx, stdout); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", offsets.Category(err), err)
		return offsets.ExitCode(err)
	}

	return offsets.ExitOK
}
