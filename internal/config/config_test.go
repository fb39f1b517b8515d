package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `{"token": "tok", "groupId": 123}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Token != "tok" {
		t.Errorf("Token = %s", cfg.Token)
	}
	if cfg.GroupID != 123 {
		t.Errorf("GroupID = %d", cfg.GroupID)
	}
	if cfg.APIVersion != DefaultAPIVersion {
		t.Errorf("APIVersion = %s", cfg.APIVersion)
	}
	if cfg.APIBaseURL != DefaultAPIBaseURL {
		t.Errorf("APIBaseURL = %s", cfg.APIBaseURL)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %s", cfg.LogLevel)
	}
	if cfg.Wait != DefaultWait {
		t.Errorf("Wait = %d", cfg.Wait)
	}
	if cfg.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %d", cfg.RetryDelay)
	}
	if cfg.DedupCacheSize != DefaultDedupCacheSize {
		t.Errorf("DedupCacheSize = %d", cfg.DedupCacheSize)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `{
		"token": "tok",
		"groupId": 1,
		"logLevel": "debug",
		"wait": 10,
		"retryDelay": 500,
		"requestSlack": 2000,
		"requestTimeout": 1000,
		"dedupCacheSize": -1,
		"plugins": {"enabled": true, "directory": "./scripts", "timeout": 3000}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.GetWaitDuration() != 10*time.Second {
		t.Errorf("GetWaitDuration = %v", cfg.GetWaitDuration())
	}
	if cfg.GetRetryDelayDuration() != 500*time.Millisecond {
		t.Errorf("GetRetryDelayDuration = %v", cfg.GetRetryDelayDuration())
	}
	if cfg.GetRequestSlackDuration() != 2*time.Second {
		t.Errorf("GetRequestSlackDuration = %v", cfg.GetRequestSlackDuration())
	}
	if cfg.GetRequestTimeoutDuration() != time.Second {
		t.Errorf("GetRequestTimeoutDuration = %v", cfg.GetRequestTimeoutDuration())
	}
	if cfg.DedupCacheSize != -1 {
		t.Errorf("DedupCacheSize = %d, want -1", cfg.DedupCacheSize)
	}
	if !cfg.IsPluginsEnabled() {
		t.Error("IsPluginsEnabled = false")
	}
	if cfg.GetPluginDirectory() != "./scripts" {
		t.Errorf("GetPluginDirectory = %s", cfg.GetPluginDirectory())
	}
	if cfg.GetPluginTimeoutDuration() != 3*time.Second {
		t.Errorf("GetPluginTimeoutDuration = %v", cfg.GetPluginTimeoutDuration())
	}
}

func TestLoad_PluginDefaults(t *testing.T) {
	path := writeConfig(t, `{"token": "tok", "groupId": 1}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.IsPluginsEnabled() {
		t.Error("IsPluginsEnabled = true without plugins section")
	}
	if cfg.GetPluginDirectory() != DefaultPluginDirectory {
		t.Errorf("GetPluginDirectory = %s", cfg.GetPluginDirectory())
	}
	if cfg.GetPluginTimeoutDuration() != time.Duration(DefaultPluginTimeout)*time.Millisecond {
		t.Errorf("GetPluginTimeoutDuration = %v", cfg.GetPluginTimeoutDuration())
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing token", `{"groupId": 1}`},
		{"missing group", `{"token": "tok"}`},
		{"negative group", `{"token": "tok", "groupId": -5}`},
		{"wait too large", `{"token": "tok", "groupId": 1, "wait": 120}`},
		{"bad log level", `{"token": "tok", "groupId": 1, "logLevel": "verbose"}`},
		{"negative retry delay", `{"token": "tok", "groupId": 1, "retryDelay": -1}`},
		{"bad dedup size", `{"token": "tok", "groupId": 1, "dedupCacheSize": -2}`},
		{"bad json", `{`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.content)
			if _, err := Load(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected an error")
	}
}
