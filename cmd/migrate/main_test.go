package main

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/orderengine/pkg/config"
	"github.com/angelmondragon/orderengine/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard})
}

func TestRunRejectsBadFlagsBeforeLoadingConfig(t *testing.T) {
	t.Setenv(config.EnvAppEnv, "")
	t.Setenv(config.EnvDBDSN, "")

	cases := []struct {
		opts options
		want string
	}{
		{opts: options{cmd: "create"}, want: "missing -name"},
		{opts: options{cmd: "version"}, want: "missing -version"},
		{opts: options{cmd: "seed"}, want: "unknown -cmd"},
	}
	for _, tc := range cases {
		err := run(context.Background(), testLogger(), tc.opts)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q, got %v", tc.opts.cmd, tc.want, err)
		}
	}
}

func TestRunCreateAndValidateStayOffline(t *testing.T) {
	t.Setenv(config.EnvAppEnv, "")
	t.Setenv(config.EnvDBDSN, "")
	dir := t.TempDir()

	if err := run(context.Background(), testLogger(), options{cmd: "create", dir: dir, name: "add order notes"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one migration file, got %v (%v)", files, err)
	}
	if err := run(context.Background(), testLogger(), options{cmd: "validate", dir: dir}); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := run(context.Background(), testLogger(), options{cmd: "validate"}); err != nil {
		t.Fatalf("validate embedded: %v", err)
	}
}

func TestRunNeedsDatabaseSettingsForSchemaCommands(t *testing.T) {
	t.Setenv(config.EnvAppEnv, "dev")
	t.Setenv(config.EnvDBDSN, "")
	t.Setenv(config.EnvDBHost, "")
	t.Setenv(config.EnvDBUser, "")
	t.Setenv(config.EnvDBName, "")

	err := run(context.Background(), testLogger(), options{cmd: "status"})
	if err == nil || !strings.Contains(err.Error(), config.EnvDBDSN) {
		t.Fatalf("expected missing %s error, got %v", config.EnvDBDSN, err)
	}
}
