package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		SourcesDir:  "./sources",
		Source:      "super-pharm",
		Force:       true,
		MaxPages:    12,
		DaysBack:    14,
		WorkerCount: 4,
		BatchSize:   500,
		UserAgent:   "Test Agent",
		Version:     "test-version",
		DBHost:      "localhost",
		DBPort:      "5432",
		DBUser:      "test_user",
		DBPassword:  "test_password",
		DBName:      "test_db",
		Timezone:    "UTC",
		Debug:       true,
	}

	if cfg.SourcesDir != "./sources" {
		t.Errorf("Expected sources dir './sources', got '%s'", cfg.SourcesDir)
	}
	if cfg.Source != "super-pharm" {
		t.Errorf("Expected source 'super-pharm', got '%s'", cfg.Source)
	}
	if !cfg.Force {
		t.Error("Expected force to be enabled")
	}
	if cfg.MaxPages != 12 {
		t.Errorf("Expected max pages 12, got %d", cfg.MaxPages)
	}
	if cfg.DaysBack != 14 {
		t.Errorf("Expected days back 14, got %d", cfg.DaysBack)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("Expected worker count 4, got %d", cfg.WorkerCount)
	}
	if cfg.BatchSize != 500 {
		t.Errorf("Expected batch size 500, got %d", cfg.BatchSize)
	}
	if cfg.UserAgent != "Test Agent" {
		t.Errorf("Expected user agent 'Test Agent', got '%s'", cfg.UserAgent)
	}
	if cfg.DBHost != "localhost" {
		t.Errorf("Expected DB host 'localhost', got '%s'", cfg.DBHost)
	}
	if cfg.DBName != "test_db" {
		t.Errorf("Expected DB name 'test_db', got '%s'", cfg.DBName)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}
