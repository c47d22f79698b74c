package config

import (
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("LUIS_APP_ID", "app")
	t.Setenv("LUIS_API_KEY", "key")
	t.Setenv("OCTOPRINT_URL", "http://printer.local/")
	t.Setenv("OCTOPRINT_API_KEY", "octo")
	t.Setenv("CHAT_APP_ID", "bot")
	t.Setenv("CHAT_APP_SECRET", "secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	if cfg.Port != "3978" {
		t.Errorf("expected default port 3978, got %s", cfg.Port)
	}
	if cfg.OctoPrintURL != "http://printer.local" {
		t.Errorf("expected trailing slash trimmed, got %s", cfg.OctoPrintURL)
	}
	if cfg.MoveDistance != 10 {
		t.Errorf("expected default move distance 10, got %v", cfg.MoveDistance)
	}
	if cfg.SlotTTL != 5*time.Minute {
		t.Errorf("expected slot TTL 5m, got %v", cfg.SlotTTL)
	}
	if cfg.LuisTimezoneOffset != -360 {
		t.Errorf("expected timezone offset -360, got %d", cfg.LuisTimezoneOffset)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("MOVE_DISTANCE", "2.5")
	t.Setenv("DEVICE_TIMEOUT", "750ms")
	t.Setenv("LUIS_TIMEZONE_OFFSET", "not-a-number")

	cfg := Load()

	if cfg.MoveDistance != 2.5 {
		t.Errorf("expected move distance 2.5, got %v", cfg.MoveDistance)
	}
	if cfg.DeviceTimeout != 750*time.Millisecond {
		t.Errorf("expected device timeout 750ms, got %v", cfg.DeviceTimeout)
	}
	if cfg.LuisTimezoneOffset != -360 {
		t.Errorf("expected invalid offset to fall back to default, got %d", cfg.LuisTimezoneOffset)
	}
}

func TestValidate_ReportsAllMissing(t *testing.T) {
	t.Setenv("LUIS_APP_ID", "")
	t.Setenv("LUIS_API_KEY", "")
	t.Setenv("OCTOPRINT_URL", "")
	t.Setenv("OCTOPRINT_API_KEY", "")
	t.Setenv("CHAT_APP_ID", "")
	t.Setenv("CHAT_APP_SECRET", "")

	err := Load().Validate()
	if err == nil {
		t.Fatal("expected error for missing credentials")
	}
	for _, key := range []string{"LUIS_APP_ID", "LUIS_API_KEY", "OCTOPRINT_URL", "OCTOPRINT_API_KEY", "CHAT_APP_ID", "CHAT_APP_SECRET"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("expected %s in error %q", key, err.Error())
		}
	}
}

func TestLuisEndpoint(t *testing.T) {
	cfg := &Config{LuisAPIHost: "westus.api.cognitive.microsoft.com"}
	if got := cfg.LuisEndpoint(); got != "https://westus.api.cognitive.microsoft.com" {
		t.Errorf("unexpected endpoint %s", got)
	}

	cfg.LuisAPIHost = "http://127.0.0.1:9000/"
	if got := cfg.LuisEndpoint(); got != "http://127.0.0.1:9000" {
		t.Errorf("unexpected endpoint %s", got)
	}
}
