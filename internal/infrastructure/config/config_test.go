package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ENV_TYPE", "LOCAL")

	cfg := LoadConfig()
	assert.Equal(t, "3003", cfg.ServerPort)
	assert.Equal(t, "127.0.0.1:5038", cfg.GetAMIAddr())
	assert.Equal(t, []string{"T16_cos-CRC", "T16_cos-all"}, cfg.TenantContexts)
	assert.Equal(t, "T16_", cfg.TenantQueuePrefix)
	assert.Equal(t, "54 0 * * *", cfg.ReconcileSchedule)
	assert.Equal(t, 10*time.Second, cfg.HangupTimeout)
}

func TestLoadConfigPrefersEnvironmentPrefix(t *testing.T) {
	t.Setenv("ENV_TYPE", "server")
	t.Setenv("AMI_HOST", "10.0.0.1")
	t.Setenv("SERVER_AMI_HOST", "pbx.internal")
	t.Setenv("TENANT_CONTEXTS", " T20_a , ,T20_b")
	t.Setenv("HANGUP_TIMEOUT", "250ms")
	t.Setenv("HANGUP_MAX_IN_FLIGHT", "not-a-number")

	cfg := LoadConfig()
	assert.Equal(t, "SERVER", cfg.EnvType)
	assert.Equal(t, "pbx.internal", cfg.AMIHost)
	assert.Equal(t, []string{"T20_a", "T20_b"}, cfg.TenantContexts)
	assert.Equal(t, 250*time.Millisecond, cfg.HangupTimeout)
	assert.Equal(t, 16, cfg.HangupMaxInFlight)
}

func TestValidate(t *testing.T) {
	t.Setenv("AMI_USERNAME", "dprj")
	t.Setenv("AMI_PASSWORD", "secret")
	t.Setenv("DB_USER", "ura")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	cfg.AMIPassword = ""
	cfg.MQTTQoS = 3
	cfg.TenantContexts = nil
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AMI_PASSWORD")
	assert.Contains(t, err.Error(), "MQTT_QOS")
	assert.Contains(t, err.Error(), "TENANT_CONTEXTS")
}

func TestValidateRejectsBlankQueuePrefix(t *testing.T) {
	t.Setenv("AMI_USERNAME", "dprj")
	t.Setenv("AMI_PASSWORD", "secret")
	t.Setenv("DB_USER", "ura")
	t.Setenv("TENANT_QUEUE_PREFIX", "  ")

	err := LoadConfig().Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TENANT_QUEUE_PREFIX")
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := &Config{ReconcileTimezone: "Not/AZone"}
	assert.Equal(t, time.Local, cfg.Location())
}
