package main

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novamem/internal"
)

func TestBindFlags_Precedence(t *testing.T) {
	t.Setenv("NOVAMEM_SERVER_ADDR", "10.0.0.1:1")

	v := internal.NewViper()
	fs := pflag.NewFlagSet("novamemd", pflag.ContinueOnError)
	bindFlags(fs, v)
	require.NoError(t, fs.Parse([]string{"--data-dir", "/srv/novamem", "--checkpoint-interval", "5s"}))

	cfg, err := internal.LoadConfig(v, "")
	require.NoError(t, err)
	assert.Equal(t, "/srv/novamem", cfg.Storage.Workdir)
	assert.Equal(t, 5*time.Second, cfg.Storage.CheckpointInterval)
	// env beats defaults when the flag is not given
	assert.Equal(t, "10.0.0.1:1", cfg.Server.Addr)
	// defaults beat flag defaults
	assert.Equal(t, "127.0.0.1:8867", cfg.Server.StatusAddr)
	assert.True(t, cfg.Storage.SyncWrites)
}
