/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: config_test.go
Description: Tests for configuration defaults, file and environment overrides and validation.
*/

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/kleascm/droidquery/pkg/config"
	"github.com/kleascm/droidquery/pkg/logging"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, 15*time.Second, cfg.ADB.Timeout)
	assert.Equal(t, 2*time.Second, cfg.Watch.Interval)
	assert.Equal(t, 9222, cfg.Browser.Port)
	assert.Equal(t, logging.LogLevelInfo, cfg.Log.Level)
	assert.Equal(t, logging.LogFormatCustom, cfg.Log.Format)
	assert.False(t, cfg.Lenient)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "droidquery.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
adb:
  serial: emulator-5554
  timeout: 5s
caller:
  package: com.app
watch:
  interval: 500ms
log:
  level: debug
`), 0644))
	t.Setenv("DROIDQUERY_CALLER_PID", "4321")
	t.Setenv("DROIDQUERY_LENIENT", "true")
	t.Setenv("DROIDQUERY_CALLER_FINISHING", "true")

	cfg, err := config.Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, "emulator-5554", cfg.ADB.Serial)
	assert.Equal(t, 5*time.Second, cfg.ADB.Timeout)
	assert.Equal(t, "com.app", cfg.Caller.Package)
	assert.Equal(t, 4321, cfg.Caller.PID)
	assert.True(t, cfg.Lenient)
	assert.True(t, cfg.Caller.Finishing)
	assert.False(t, cfg.Caller.Destroyed)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Interval)
	assert.Equal(t, logging.LogLevelDebug, cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.Watch.Interval = 0
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Browser.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg = config.Default()
	cfg.Export.Recipient = "age1notakey"
	assert.Error(t, cfg.Validate())

	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	cfg.Export.Recipient = identity.Recipient().String()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRecipientPrefix(t *testing.T) {
	err := config.ValidateRecipient("ssh-ed25519 AAAA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "age1")
}
