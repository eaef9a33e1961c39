package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/DhavalSuthar-24/miow-context-master/internal/engine"
	"github.com/DhavalSuthar-24/miow-context-master/internal/slogutil"
)

var (
	engineOnce   sync.Once
	sharedEngine *engine.Engine
	engineErr    error
)

// getEngine returns the shared engine for the resolved codebase root,
// lazily initialized on first use.
func getEngine(root string, logger *slog.Logger) (*engine.Engine, error) {
	engineOnce.Do(func() {
		sharedEngine, engineErr = engine.New(root, logger)
		if engineErr != nil {
			engineErr = fmt.Errorf("initialize engine: %w", engineErr)
		}
	})
	return sharedEngine, engineErr
}

// resolveRoot returns the codebase root from --path or the working directory.
func resolveRoot() (string, error) {
	if pathFlag != "" {
		return pathFlag, nil
	}
	return os.Getwd()
}

// newLogger builds the command logger. --quiet and -v override --log-level;
// --log-file redirects output from stderr. The log file stays open for the
// life of the process.
func newLogger() *slog.Logger {
	level := slogutil.LevelFromString(logLevelFlag)
	if quietFlag || verbosityFlag > 0 {
		level = slogutil.LevelFromVerbosity(verbosityFlag, quietFlag)
	}
	if logFileFlag != "" {
		logger, _, err := slogutil.NewFileLogger(logFileFlag, level)
		if err == nil {
			return logger
		}
		fmt.Fprintf(os.Stderr, "warning: log file %s: %v, logging to stderr\n", logFileFlag, err)
	}
	return slogutil.NewLogger(os.Stderr, level)
}

// newContext creates the context commands run under.
func newContext() context.Context {
	return context.Background()
}
