package config

import "testing"

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "123:abc"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run_mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
	if cfg.Dispatch.DailyRate != 25 || cfg.Dispatch.BroadcastRate != 5 {
		t.Errorf("dispatch defaults = %d/%d, want 25/5", cfg.Dispatch.DailyRate, cfg.Dispatch.BroadcastRate)
	}
	if cfg.Dispatch.MarginMS != 1050 {
		t.Errorf("margin_ms = %d, want 1050", cfg.Dispatch.MarginMS)
	}
}

func TestNormalizeRejectsMissingToken(t *testing.T) {
	if err := Normalize(&Config{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestNormalizeRejectsExcessiveRates(t *testing.T) {
	cfg := validConfig()
	cfg.Dispatch.DailyRate = 31
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for rate above platform limit")
	}
}

func TestNormalizeWebhookValidation(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "webhook"
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook mode without url")
	}
	cfg.Webhook = WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize webhook: %v", err)
	}
}

func TestNormalizePollingAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Errorf("run_mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
}

func TestNormalizeRejectsUnknownExclusion(t *testing.T) {
	cfg := validConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"inline_query"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for unknown exclusion")
	}
}
