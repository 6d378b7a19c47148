package handlers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/require"

	"github.com/imamik/harvester-e2e/internal/testing/fakeapi"
)

// testEnv writes an options file pointing at the fake servers. Either
// server may be nil.
func testEnv(t *testing.T, hsrv, rsrv *fakeapi.Server) (Env, *bytes.Buffer, string) {
	t.Helper()

	artifacts := t.TempDir()
	cfg := fmt.Sprintf("pollInterval: 5ms\nwaitTimeout: 500ms\nrancherWaitTimeout: 500ms\nartifacts:\n  dir: %s\n", artifacts)
	if hsrv != nil {
		cfg += fmt.Sprintf("harvester:\n  endpoint: %s\n  token: h-token\n", hsrv.URL)
	}
	if rsrv != nil {
		cfg += fmt.Sprintf("rancher:\n  endpoint: %s\n  token: r-token\n", rsrv.URL)
	}

	path := filepath.Join(t.TempDir(), "options.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	var out bytes.Buffer
	return Env{ConfigPath: path, Log: testr.New(t), Out: &out}, &out, artifacts
}

var ctx = context.Background()
