package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8000", c.Addr)
	assert.Equal(t, "dev-secret-key", c.SecretKey)
	assert.Equal(t, 15*time.Minute, c.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenTTL)
	assert.Equal(t, 10*time.Minute, c.OTPTTL)
	assert.Equal(t, time.Minute, c.OTPResendCooldown)
	assert.Equal(t, 5, c.MaxFailedLogins)
	assert.Equal(t, 10*time.Minute, c.LockoutDuration)
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("VAULTGUARD_DEV_ADDR", ":9000")
	t.Setenv("VAULTGUARD_DEV_SECRET", "from-env")
	t.Setenv("VAULTGUARD_DEV_OTP_COOLDOWN", "5s")

	cfg, err := LoadConfig([]string{"-s", "from-flag", "-t", "1", "-o", "2", "-x"})
	require.NoError(t, err)

	want := &Config{}
	want.LoadDefaults()
	want.Addr = ":9000"
	want.SecretKey = "from-flag"
	want.AccessTokenTTL = time.Minute
	want.OTPTTL = 2 * time.Minute
	want.OTPResendCooldown = 5 * time.Second

	assert.Empty(t, cmp.Diff(want, cfg))
}

func TestParseEnv_Explicit(t *testing.T) {
	var c Config
	c.LoadDefaults()

	err := parseEnv(&c, map[string]string{
		"VAULTGUARD_DEV_MAX_FAILED_LOGINS": "3",
		"VAULTGUARD_DEV_LOCKOUT":           "30s",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, c.MaxFailedLogins)
	assert.Equal(t, 30*time.Second, c.LockoutDuration)

	assert.Error(t, parseEnv(&c, map[string]string{"VAULTGUARD_DEV_MAX_FAILED_LOGINS": "many"}))
}

func TestParseFlags_Invalid(t *testing.T) {
	var c Config
	c.LoadDefaults()
	assert.Error(t, parseFlags(&c, []string{"-r", "week"}))
}
