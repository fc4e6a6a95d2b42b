package core

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()
	validConfig := func() Config {
		return Config{
			Alias:            "testns",
			TempRoot:         "/testns",
			LockDir:          "/tmp/testns-locks",
			RetryDelay:       100 * time.Millisecond,
			PurgeConcurrency: 4,
			NewID:            func() string { return "id" },
		}
	}

	t.Run("valid config returns nil", func(t *testing.T) {
		t.Parallel()
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	tests := map[string]struct {
		modify       func(c *Config)
		wantContains string
	}{
		"empty alias": {
			modify:       func(c *Config) { c.Alias = "" },
			wantContains: "alias must not be empty",
		},
		"alias with separator": {
			modify:       func(c *Config) { c.Alias = "a/b" },
			wantContains: "single path segment",
		},
		"dot-dot alias": {
			modify:       func(c *Config) { c.Alias = ".." },
			wantContains: "single path segment",
		},
		"empty temp root": {
			modify:       func(c *Config) { c.TempRoot = "" },
			wantContains: "temp root",
		},
		"slash temp root": {
			modify:       func(c *Config) { c.TempRoot = "/" },
			wantContains: "temp root",
		},
		"empty lock dir": {
			modify:       func(c *Config) { c.LockDir = "" },
			wantContains: "lock directory",
		},
		"zero retry delay": {
			modify:       func(c *Config) { c.RetryDelay = 0 },
			wantContains: "retry delay",
		},
		"negative retry delay": {
			modify:       func(c *Config) { c.RetryDelay = -time.Second },
			wantContains: "retry delay",
		},
		"zero purge concurrency": {
			modify:       func(c *Config) { c.PurgeConcurrency = 0 },
			wantContains: "purge concurrency",
		},
		"nil id generator": {
			modify:       func(c *Config) { c.NewID = nil },
			wantContains: "id generator",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.modify(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantContains) {
				t.Errorf("error %q does not contain %q", err.Error(), tc.wantContains)
			}
		})
	}

	t.Run("multiple violations are all reported", func(t *testing.T) {
		t.Parallel()
		err := Config{}.Validate()
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		for _, want := range []string{"alias", "temp root", "lock directory", "retry delay", "id generator"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error %q does not mention %q", err.Error(), want)
			}
		}
	})
}

// TestConfigFieldCount guards against adding a Config field without
// extending Validate and its test.
func TestConfigFieldCount(t *testing.T) {
	t.Parallel()
	const want = 7
	if got := reflect.TypeFor[Config]().NumField(); got != want {
		t.Errorf("Config has %d fields, want %d: update Validate and this test", got, want)
	}
}
