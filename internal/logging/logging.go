// Package logging builds the logr loggers used by the suites and the CLI.
//
// The backend is controller-runtime's zap integration. Development mode
// (console encoding, debug level) is enabled with DEBUG=true, and
// E2E_LOG_VERBOSITY raises the V-level that is printed, e.g. 2 to log every
// API request.
package logging

import (
	"flag"
	"io"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
)

// Options returns zap options derived from the environment.
func Options() *zap.Options {
	opts := &zap.Options{
		Development: os.Getenv("DEBUG") == "true",
	}
	if v, err := strconv.Atoi(os.Getenv("E2E_LOG_VERBOSITY")); err == nil && v > 0 {
		opts.Level = zapcore.Level(-v)
	}
	return opts
}

// New returns a logger writing to w.
func New(w io.Writer, opts *zap.Options) logr.Logger {
	return zap.New(zap.UseFlagOptions(opts), zap.WriteTo(w))
}

// FromEnv returns a stderr logger configured from the environment.
func FromEnv() logr.Logger {
	return New(os.Stderr, Options())
}

// BindFlags exposes the zap flags (--zap-devel, --zap-log-level, ...) on a
// cobra flag set.
func BindFlags(fs *pflag.FlagSet, opts *zap.Options) {
	gofs := flag.NewFlagSet("zap", flag.ContinueOnError)
	opts.BindFlags(gofs)
	fs.AddGoFlagSet(gofs)
}
