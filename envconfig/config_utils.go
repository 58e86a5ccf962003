// config_utils.go - Export-Funktionen fuer Konfiguration
//
// Dieses Modul enthaelt:
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import "fmt"

// EnvVar repraesentiert eine Environment-Variable mit Metadaten.
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck, mit Namen, aktuellen
// Werten und Beschreibungen.
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"CLAMMA_MODELS":       {"CLAMMA_MODELS", Models(), "Default search directory for model checkpoints"},
		"CLAMMA_LOG_LEVEL":    {"CLAMMA_LOG_LEVEL", LogLevel(), "Log level: debug, info, warn, error (default info)"},
		"CLAMMA_NUM_THREADS":  {"CLAMMA_NUM_THREADS", NumThreads(), "Worker pool size (default 8)"},
		"CLAMMA_CACHE_LIMIT":  {"CLAMMA_CACHE_LIMIT", CacheLimit(), "Byte budget for the malloc-cache weight accessor, 0 = unbounded"},
		"CLAMMA_MAX_SESSIONS": {"CLAMMA_MAX_SESSIONS", MaxSessions(), "Default per-model session admission limit, 0 = unbounded"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck.
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
