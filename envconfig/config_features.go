// config_features.go - Runtime-Parameter fuer den Worker-Pool, den
// Weight-Cache und die Session-Verwaltung
//
// Dieses Modul enthaelt:
// - NumThreads: Groesse des Worker-Pools (CLAMMA_NUM_THREADS)
// - CacheLimit: Byte-Budget des Malloc-Cache-Weight-Accessors (CLAMMA_CACHE_LIMIT)
// - MaxSessions: Standard-Obergrenze gleichzeitiger Sessions pro Modell (CLAMMA_MAX_SESSIONS)
package envconfig

import (
	"log/slog"

	"github.com/dustin/go-humanize"
)

// NumThreads gibt die Anzahl der Worker-Pool-Threads zurueck.
// Konfigurierbar via CLAMMA_NUM_THREADS. Default: 8.
func NumThreads() uint {
	return varUint("CLAMMA_NUM_THREADS", 8)
}

// CacheLimit gibt das Byte-Budget fuer den MALLOC_CACHE-Weight-Accessor
// zurueck. 0 bedeutet unbegrenzt.
// Konfigurierbar via CLAMMA_CACHE_LIMIT, z.B. "512MiB", "2GiB", oder eine
// reine Byte-Zahl.
func CacheLimit() uint64 {
	s := Var("CLAMMA_CACHE_LIMIT")
	if s == "" {
		return 0
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		slog.Warn("invalid CLAMMA_CACHE_LIMIT, ignoring", "value", s, "error", err)
		return 0
	}
	return n
}

// MaxSessions gibt die Standard-Obergrenze gleichzeitiger Sessions pro
// Modell zurueck. 0 bedeutet unbegrenzt.
// Konfigurierbar via CLAMMA_MAX_SESSIONS.
func MaxSessions() uint {
	return varUint("CLAMMA_MAX_SESSIONS", 0)
}
