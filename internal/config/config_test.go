package config

import (
	"testing"
	"time"

	"github.com/joonhyoung1/crypto-trading-bot/internal/exchange"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, expected 8080", cfg.Server.Port)
	}
	if cfg.Trading.EntryLongPct != 0.05 {
		t.Errorf("EntryLongPct = %v, expected 0.05", cfg.Trading.EntryLongPct)
	}
	if cfg.Trading.EntryShortPct != -0.06 {
		t.Errorf("EntryShortPct = %v, expected -0.06", cfg.Trading.EntryShortPct)
	}
	if cfg.Trading.MonitorInterval != 1*time.Second {
		t.Errorf("MonitorInterval = %v, expected 1s", cfg.Trading.MonitorInterval)
	}
	if cfg.Trading.DedupWindow != 300*time.Second {
		t.Errorf("DedupWindow = %v, expected 300s", cfg.Trading.DedupWindow)
	}
	if cfg.Trading.SafetyFactor != 0.95 {
		t.Errorf("SafetyFactor = %v, expected 0.95", cfg.Trading.SafetyFactor)
	}
	if cfg.Trading.UsdtToKrw != 1300 {
		t.Errorf("UsdtToKrw = %v, expected 1300", cfg.Trading.UsdtToKrw)
	}
	if len(cfg.Trading.Symbols) != 2 {
		t.Errorf("symbols = %v, expected two", cfg.Trading.Symbols)
	}
}

func TestLoadVenueCredentials(t *testing.T) {
	t.Setenv("M_API_KEY", "mexc-key")
	t.Setenv("M_API_SECRET", "mexc-secret")
	t.Setenv("B_API_KEY", "bitget-key")
	t.Setenv("B_API_SECRET", "bitget-secret")
	t.Setenv("B_PASSPHRASE", "bitget-pass")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !cfg.Venues.Mexc.Configured() {
		t.Error("mexc must be configured")
	}
	if cfg.Venues.Gate.Configured() {
		t.Error("gate must not be configured without keys")
	}
	if cfg.Venues.Bitget.Passphrase != "bitget-pass" {
		t.Error("bitget passphrase not loaded")
	}

	venues := cfg.ConfiguredVenues()
	if len(venues) != 2 {
		t.Fatalf("ConfiguredVenues = %v, expected mexc and bitget", venues)
	}
	if venues[0] != exchange.VenueMexc || venues[1] != exchange.VenueBitget {
		t.Errorf("unexpected venue order: %v", venues)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"invalid port", "SERVER_PORT", "99999"},
		{"non-positive long threshold", "ENTRY_LONG_PCT", "-0.05"},
		{"non-negative short threshold", "ENTRY_SHORT_PCT", "0.06"},
		{"safety factor above one", "SAFETY_FACTOR", "1.5"},
		{"negative max notional", "MAX_NOTIONAL", "-100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Errorf("expected validation error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestNotifierDisabledWithoutCreds(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Notifier.Enabled() {
		t.Error("notifier must be disabled without credentials")
	}

	t.Setenv("NOTIFIER_TOKEN", "123:abc")
	t.Setenv("NOTIFIER_CHAT_ID", "-100200300")

	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Notifier.Enabled() {
		t.Error("notifier must be enabled with credentials")
	}
	if cfg.Notifier.ChatID != -100200300 {
		t.Errorf("ChatID = %d", cfg.Notifier.ChatID)
	}
}

func TestAuditDisabledByDefault(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Audit.Enabled() {
		t.Error("audit must be disabled without DSN")
	}
}
