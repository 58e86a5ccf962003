// accessor.go - Weight-Accessor: liefert einen lesbaren Bereich fuer ein
// Gewicht, unabhaengig vom Backing-Store (mmap, In-Memory-Image oder
// Malloc-Cache).
//
// Grounded on original_source/parameter/inc/weight_cache.c.
package weights

import "fmt"

// AccessMode waehlt, wie Modellgewichte hinter dem Accessor liegen.
type AccessMode int

const (
	// Mmap bildet die Checkpoint-Datei read-only privat in den
	// Adressraum ein; Fetch gibt Unterbereiche davon ohne Kopie zurueck.
	Mmap AccessMode = iota
	// MallocCache liest Gewichte on-demand aus der Datei und haelt sie in
	// einem budgetierten Cache.
	MallocCache
	// AbsoluteAddress nutzt ein vom Aufrufer bereitgestelltes
	// In-Memory-Abbild des Checkpoints.
	AbsoluteAddress
)

// Store liefert Byte-Bereiche aus dem Gewichtskoerper einer Checkpoint-Datei,
// adressiert relativ zum Anfang des Gewichtskoerpers (nicht zum Dateianfang).
type Store interface {
	// Fetch gibt size Bytes ab offset zurueck, oder einen Fehler bei
	// Kurzlese- oder Allokationsfehlern.
	Fetch(offset uint64, size uint64) ([]byte, error)
	// Close gibt alle vom Store gehaltenen Ressourcen frei.
	Close() error
}

// Accessor ist der Weight-Accessor aus der Komponentenbeschreibung: ein
// Store plus sein Zugriffsmodus. Die Cache-Zaehler fuehrt der Store selbst;
// Stats reicht sie nur durch.
type Accessor struct {
	Mode  AccessMode
	store Store
}

// NewAccessor baut einen Accessor um den gegebenen Store.
func NewAccessor(mode AccessMode, store Store) *Accessor {
	return &Accessor{Mode: mode, store: store}
}

// Fetch liefert einen lesbaren Bereich fuer ein Gewicht. Ein Fehlschlag hier
// ist fuer die Forward-Engine ein Step-Fehler (siehe transformer-Paket).
func (a *Accessor) Fetch(offset uint64, size uint64) ([]byte, error) {
	if a == nil || a.store == nil {
		return nil, fmt.Errorf("weights: accessor not initialized")
	}
	b, err := a.store.Fetch(offset, size)
	if err != nil {
		return nil, fmt.Errorf("weights: fetch offset=%d size=%d: %w", offset, size, err)
	}
	return b, nil
}

// Close releases the accessor's backing store.
func (a *Accessor) Close() error {
	if a == nil || a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Stats describes the cache counters from the data model (§3): totals for
// entries created, fetch calls served, cache hits, and current bytes held.
// Stores that are not cache-backed (Mmap, AbsoluteAddress) return a zero
// Stats.
type Stats struct {
	Created uint64
	Fetched uint64
	Touched uint64
	Alloced uint64
}

// Stats reports the cache counters if the accessor's store tracks them.
func (a *Accessor) Stats() Stats {
	if a == nil {
		return Stats{}
	}
	if s, ok := a.store.(interface{ Stats() Stats }); ok {
		return s.Stats()
	}
	return Stats{}
}
