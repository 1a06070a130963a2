// Command smimectl is a thin CLI façade over the engine, primarily
// useful for manual testing and scripting against a gpgsm-compatible
// helper without writing Go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hexgate/smime-engine/internal/engine"
)

var (
	helperPath string
	logger     *zap.Logger
	registry   *engine.Registry
)

func main() {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	root := &cobra.Command{
		Use:   "smimectl",
		Short: "Drive an S/MIME helper process over its line protocol",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			registry = engine.NewRegistry(logger, helperPath, os.Environ(), 4, 16)
		},
	}
	root.PersistentFlags().StringVar(&helperPath, "helper", "/usr/bin/gpgsm", "path to the S/MIME helper binary")

	root.AddCommand(
		decryptCmd(),
		encryptCmd(),
		signCmd(),
		verifyCmd(),
		importCmd(),
		genkeyCmd(),
		keylistCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// defaultStatusHandler logs every status event at debug level; CLI
// subcommands may override with something printing to stdout.
func defaultStatusHandler(cmdName string) engine.StatusHandler {
	return func(code engine.StatusCode, name, rest string) {
		logger.Debug("status", zap.String("cmd", cmdName), zap.String("name", name), zap.String("rest", rest))
	}
}

// runSession opens a session from the shared registry, stages it via
// stage, activates it against a fresh epoll loop, and blocks until
// completion, surfacing the first asynchronous error if any.
func runSession(stage func(s *engine.Session) *engine.Error, statusFn engine.StatusHandler, colonFn engine.ColonHandler) error {
	s, err := registry.Open(statusFn, colonFn)
	if err != nil {
		return err
	}

	if serr := stage(s); serr != nil {
		registry.Abandon(s)
		return serr
	}

	loop, lerr := newEpollLoop()
	if lerr != nil {
		registry.Abandon(s)
		return lerr
	}
	go loop.Run()

	if serr := registry.Activate(s, loop); serr != nil {
		return serr
	}

	<-s.Done()
	if e := s.Err(); e != nil {
		return e
	}
	return nil
}
