package envconfig

import (
	"log/slog"
	"testing"
)

func TestLogLevel(t *testing.T) {
	cases := []struct {
		value string
		want  slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, c := range cases {
		t.Run(c.value, func(t *testing.T) {
			t.Setenv("CLAMMA_LOG_LEVEL", c.value)
			if got := LogLevel(); got != c.want {
				t.Errorf("LogLevel() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestNumThreadsDefault(t *testing.T) {
	t.Setenv("CLAMMA_NUM_THREADS", "")
	if got := NumThreads(); got != 8 {
		t.Errorf("NumThreads() = %v, want 8", got)
	}

	t.Setenv("CLAMMA_NUM_THREADS", "16")
	if got := NumThreads(); got != 16 {
		t.Errorf("NumThreads() = %v, want 16", got)
	}
}

func TestCacheLimit(t *testing.T) {
	cases := []struct {
		value string
		want  uint64
	}{
		{"", 0},
		{"1024", 1024},
		{"1KiB", 1024},
		{"2MiB", 2 * 1 << 20},
		{"1GiB", 1 << 30},
		{"not-a-size", 0},
	}

	for _, c := range cases {
		t.Run(c.value, func(t *testing.T) {
			t.Setenv("CLAMMA_CACHE_LIMIT", c.value)
			if got := CacheLimit(); got != c.want {
				t.Errorf("CacheLimit() = %v, want %v", got, c.want)
			}
		})
	}
}

func TestMaxSessions(t *testing.T) {
	t.Setenv("CLAMMA_MAX_SESSIONS", "4")
	if got := MaxSessions(); got != 4 {
		t.Errorf("MaxSessions() = %v, want 4", got)
	}
}
