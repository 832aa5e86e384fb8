package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidateRejectsIncompleteConfig(t *testing.T) {
	cfg := &Config{}
	err := validate.Struct(cfg)
	require.Error(t, err, "empty config must not validate")
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := &Config{
		DB:      DBConfig{Source: "postgres://localhost/cloud"},
		JWT:     JWTConfig{Secret: "secret"},
		Storage: StorageConfig{UploadsPath: "/var/lib/cloud/uploads"},
		Quota: QuotaConfig{
			DefaultLimitGB:    15,
			ReconcileInterval: 15 * time.Minute,
		},
		Guild: GuildConfig{
			GuildID:      "1257795491232616629",
			AllowedRoles: []string{"role-a"},
		},
		Server: ServerConfig{Addr: ":8080", RequestTimeout: 30 * time.Second},
	}
	require.NoError(t, validate.Struct(cfg))
}

func TestGigabytesToBytes(t *testing.T) {
	require.Equal(t, int64(15*1024*1024*1024), GigabytesToBytes(15))

	// Fractional limits are allowed on the admin surface.
	require.Equal(t, int64(512*1024*1024), GigabytesToBytes(0.5))
}

func TestDefaultLimitBytes(t *testing.T) {
	q := QuotaConfig{DefaultLimitGB: 15}
	require.Equal(t, int64(16106127360), q.DefaultLimitBytes())
}
