package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func baseEnv() map[string]string {
	return map[string]string{
		"MONGODB_URI":          "mongodb://localhost:27017",
		"ACCESS_TOKEN_SECRET":  "access-secret",
		"REFRESH_TOKEN_SECRET": "refresh-secret",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "dog_adoption", cfg.MongoDatabase)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, MinBcryptCost, cfg.BcryptCost)
	assert.True(t, cfg.RotateOnRefresh)
	assert.False(t, cfg.Production())
}

func TestFromEnv_MissingSecretsFail(t *testing.T) {
	env := baseEnv()
	delete(env, "ACCESS_TOKEN_SECRET")
	env["REFRESH_TOKEN_SECRET"] = "   "

	_, err := FromEnv(envMap(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_SECRET")
	assert.Contains(t, err.Error(), "REFRESH_TOKEN_SECRET")
}

func TestFromEnv_EqualSecretsFail(t *testing.T) {
	env := baseEnv()
	env["REFRESH_TOKEN_SECRET"] = env["ACCESS_TOKEN_SECRET"]

	_, err := FromEnv(envMap(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestFromEnv_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"BCRYPT_COST":               "10",
		"ACCESS_TOKEN_TTL":          "soon",
		"REFRESH_TOKEN_TTL":         "-1h",
		"SESSION_ROTATE_ON_REFRESH": "maybe",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			env := baseEnv()
			env[key] = val
			_, err := FromEnv(envMap(env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestConfig_Production(t *testing.T) {
	env := baseEnv()
	env["APP_ENV"] = "production"
	cfg, err := FromEnv(envMap(env))
	require.NoError(t, err)
	assert.True(t, cfg.Production())
}
