package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(nil, "", io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "envanter.sqlite3", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, "Admin", cfg.AdminFirstName)
	assert.Equal(t, PhotoDriverDB, cfg.PhotoDriver)
	assert.Equal(t, 1024, cfg.PhotoMaxDim)
	assert.Equal(t, "items/", cfg.S3.Prefix)
	assert.True(t, cfg.Metrics)
}

func TestEnvironmentThenFlags(t *testing.T) {
	t.Setenv("ENVANTER_DB", "/tmp/env.sqlite3")
	t.Setenv("ENVANTER_ADDR", ":9000")
	t.Setenv("ENVANTER_BCRYPT_COST", "10")

	cfg, err := Load([]string{"-a", ":9100", "-no-metrics"}, "", io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.sqlite3", cfg.DBPath)
	assert.Equal(t, ":9100", cfg.Addr, "flags override the environment")
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.False(t, cfg.Metrics)
}

func TestDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ENVANTER_ADMIN_FIRST_NAME=Zeynep\nENVANTER_S3_PREFIX=photos/\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("ENVANTER_ADMIN_FIRST_NAME")
		os.Unsetenv("ENVANTER_S3_PREFIX")
	})

	cfg, err := Load(nil, path, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "Zeynep", cfg.AdminFirstName)
	assert.Equal(t, "photos/", cfg.S3.Prefix)
}

func TestMissingDotEnvIsFine(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "nope.env"), io.Discard)
	assert.NoError(t, err)
}

func TestHelp(t *testing.T) {
	_, err := Load([]string{"-h"}, "", io.Discard)
	assert.True(t, errors.Is(err, flag.ErrHelp))
}

func TestValidate(t *testing.T) {
	_, err := Load([]string{"-photos", "s3"}, "", io.Discard)
	assert.Error(t, err, "s3 without a bucket")

	t.Setenv("ENVANTER_S3_BUCKET", "envanter-photos")
	cfg, err := Load([]string{"-photos", "s3"}, "", io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "envanter-photos", cfg.S3.Bucket)

	_, err = Load([]string{"-photos", "ftp"}, "", io.Discard)
	assert.Error(t, err)

	t.Setenv("ENVANTER_BCRYPT_COST", "2")
	_, err = Load(nil, "", io.Discard)
	assert.Error(t, err)
}

func TestUnexpectedArgument(t *testing.T) {
	_, err := Load([]string{"serve"}, "", io.Discard)
	assert.Error(t, err)
}
