package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("XENBRIDGE_TEST_KEY", "value")

	assert.Equal(t, "value", GetEnv("XENBRIDGE_TEST_KEY", "default"))
	assert.Equal(t, "default", GetEnv("XENBRIDGE_MISSING_KEY", "default"))
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("XENBRIDGE_BOOL_TRUE", "true")
	t.Setenv("XENBRIDGE_BOOL_INVALID", "not-a-bool")

	assert.True(t, GetBoolEnv("XENBRIDGE_BOOL_TRUE", false))
	assert.False(t, GetBoolEnv("XENBRIDGE_BOOL_INVALID", false))
	assert.True(t, GetBoolEnv("XENBRIDGE_BOOL_MISSING", true))
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("XENBRIDGE_INT", "42")
	t.Setenv("XENBRIDGE_INT_INVALID", "forty-two")

	assert.Equal(t, 42, GetIntEnv("XENBRIDGE_INT", 1))
	assert.Equal(t, 1, GetIntEnv("XENBRIDGE_INT_INVALID", 1))
	assert.Equal(t, 7, GetIntEnv("XENBRIDGE_INT_MISSING", 7))
}

func TestLoadXenditConfig(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		expectErr bool
		check     func(t *testing.T, cfg *XenditConfig)
	}{
		{
			name: "minimal valid config",
			env:  map[string]string{"XENDIT_API_KEY": "xnd_test_123"},
			check: func(t *testing.T, cfg *XenditConfig) {
				assert.Equal(t, "xnd_test_123", cfg.APIKey)
				assert.Equal(t, "https://api.xendit.co", cfg.BaseURL)
				assert.Equal(t, DefaultInvoiceDuration, cfg.InvoiceDuration)
				assert.Empty(t, cfg.CallbackToken)
				assert.Empty(t, cfg.PaymentMethods)
			},
		},
		{
			name:      "missing api key",
			env:       map[string]string{},
			expectErr: true,
		},
		{
			name: "payment methods parsed and upper-cased",
			env: map[string]string{
				"XENDIT_API_KEY":  "xnd_test_123",
				"PAYMENT_METHODS": "bca, ovo ,DANA",
			},
			check: func(t *testing.T, cfg *XenditConfig) {
				assert.Equal(t, []string{"BCA", "OVO", "DANA"}, cfg.PaymentMethods)
			},
		},
		{
			name: "custom invoice duration",
			env: map[string]string{
				"XENDIT_API_KEY":   "xnd_test_123",
				"INVOICE_DURATION": "3600",
			},
			check: func(t *testing.T, cfg *XenditConfig) {
				assert.Equal(t, 3600, cfg.InvoiceDuration)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XENDIT_API_KEY", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadXenditConfig()
			if tt.expectErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
