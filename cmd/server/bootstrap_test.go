package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collegedesk/collegedesk/internal/app"
)

func TestConvertDatabaseConfig(t *testing.T) {
	cfg := &app.Config{}
	cfg.Database.Driver = " SQLite "
	cfg.Database.Path = " ./data/portal.sqlite "

	dbCfg := convertDatabaseConfig(cfg)
	require.Equal(t, "sqlite", dbCfg.Driver)
	require.Equal(t, "./data/portal.sqlite", dbCfg.Path)

	cfg = &app.Config{}
	cfg.Database.Driver = "postgresql"
	cfg.Database.Postgres.Host = "db.internal"
	cfg.Database.Postgres.Port = 5432
	cfg.Database.Postgres.Database = "collegedesk"
	cfg.Database.Postgres.Username = "portal"
	cfg.Database.Postgres.Password = "secret"

	dbCfg = convertDatabaseConfig(cfg)
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.internal", dbCfg.Host)
	require.Equal(t, 5432, dbCfg.Port)
	require.Equal(t, "collegedesk", dbCfg.Name)
	require.Equal(t, "portal", dbCfg.User)
	require.Equal(t, "secret", dbCfg.Password)
}

func TestEnsureSecretsPresent(t *testing.T) {
	cfg := &app.Config{}
	require.Error(t, ensureSecretsPresent(cfg))

	cfg.Auth.JWT.Secret = "jwt-secret"
	require.Error(t, ensureSecretsPresent(cfg))

	cfg.Vault.EncryptionKey = "notification-key"
	require.NoError(t, ensureSecretsPresent(cfg))

	cfg.Auth.JWT.Secret = "   "
	require.Error(t, ensureSecretsPresent(cfg))
}
