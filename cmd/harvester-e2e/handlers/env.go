// Package handlers implements the CLI commands.
package handlers

import (
	"context"
	"io"

	"github.com/go-logr/logr"

	"github.com/imamik/harvester-e2e/internal/config"
	"github.com/imamik/harvester-e2e/internal/platform/apiclient"
	"github.com/imamik/harvester-e2e/internal/session"
)

// Env is what every handler needs from the command line.
type Env struct {
	ConfigPath string
	Log        logr.Logger
	Out        io.Writer

	// ClientOptions are appended to the API client options.
	ClientOptions []apiclient.Option
}

func (e Env) connect(ctx context.Context) (*session.Session, error) {
	opts, err := config.LoadFile(e.ConfigPath)
	if err != nil {
		return nil, err
	}
	return session.Connect(ctx, opts, e.Log, e.ClientOptions...)
}
