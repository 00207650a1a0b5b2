// Command inferstore is a caching gateway for the Triton inference
// protocol. In collect mode it forwards every call to the inference server
// and records the responses; in serve mode it answers from the recordings
// and falls through to the server on a miss.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"

	"github.com/jonwraymond/inferstore/config"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "inferstore:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet("inferstore", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	check := fs.Bool("check", false, "validate the configuration and storage, then exit")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Println(version)
		return nil
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Resolve(ctx); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if *check {
		return a.check(ctx)
	}
	return a.run(ctx)
}
