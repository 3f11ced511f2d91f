package controller

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/relay-switch/internal/config"
)

func TestLoadConfig_Overrides(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		name  string
		opts  Options
		check func(t *testing.T, cfg *config.Config)
	}{
		{
			name: "defaults",
			opts: Options{},
			check: func(t *testing.T, cfg *config.Config) {
				require.Equal(t, config.DefaultRedisAddress, cfg.Store.Address)
				require.Equal(t, config.DefaultName, cfg.Name)
				require.Equal(t, config.TransmitterRF, cfg.Transmitter.Kind)
				require.Equal(t, config.DefaultPin, cfg.Transmitter.Pin)
			},
		},
		{
			name: "redis host keeps default port",
			opts: Options{RedisHost: "broker"},
			check: func(t *testing.T, cfg *config.Config) {
				require.Equal(t, "broker:6379", cfg.Store.Address)
			},
		},
		{
			name: "redis port keeps host",
			opts: Options{RedisPort: 6380},
			check: func(t *testing.T, cfg *config.Config) {
				require.Equal(t, "localhost:6380", cfg.Store.Address)
			},
		},
		{
			name: "name",
			opts: Options{Name: "garden"},
			check: func(t *testing.T, cfg *config.Config) {
				require.Equal(t, "garden", cfg.Name)
			},
		},
		{
			name: "single pin selects rf pin",
			opts: Options{GPIOPins: []string{"27"}},
			check: func(t *testing.T, cfg *config.Config) {
				require.Equal(t, "27", cfg.Transmitter.Pin)
				require.Equal(t, config.TransmitterRF, cfg.Transmitter.Kind)
			},
		},
		{
			name: "eight pins select direct",
			opts: Options{
				GPIOPins:      []string{"2", "3", "4", "17", "27", "22", "10", "9"},
				InvertOutputs: true,
			},
			check: func(t *testing.T, cfg *config.Config) {
				require.Equal(t, config.TransmitterDirect, cfg.Transmitter.Kind)
				require.Len(t, cfg.Transmitter.Pins, 8)
				require.True(t, cfg.Transmitter.InvertOutputs)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			opts := tt.opts
			opts.ConfigPath = missing

			cfg, err := loadConfig(&opts)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig_InvalidOverride(t *testing.T) {
	t.Parallel()

	_, err := loadConfig(&Options{
		ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"),
		GPIOPins:   []string{"2", "3"},
	})
	require.ErrorIs(t, err, config.ErrDirectPins)
}
