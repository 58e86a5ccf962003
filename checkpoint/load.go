package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/warmcat/clamma-go/weights"
)

// APIVersion is bumped whenever the Load/Config contract changes in a way
// callers must notice. Mirrors clamma_txf_info_t's clamma_api_version
// field: Load refuses to proceed on a mismatch instead of guessing at
// compatibility.
const APIVersion = 1

// SearchPath is tried as a fallback directory when CheckpointPath can't be
// opened directly, matching CLAMMA_MODEL_SEARCH_PATH.
var SearchPath = "/usr/share/clamma/models"

// LoadInfo describes a checkpoint to load. It mirrors clamma_txf_info_t.
type LoadInfo struct {
	APIVersion     int
	CheckpointPath string
	AccessMode     weights.AccessMode
	ModelBase      []byte // only used when AccessMode is AbsoluteAddress
	CacheLimit     uint64 // only used when AccessMode is MallocCache
}

// Load opens and parses a checkpoint file, choosing a backing Store per
// info.AccessMode and computing the full weight layout, following
// clamma_txf_construct's sequence: API version check, path-with-fallback
// open, header parse by magic number, then layout.
func Load(info LoadInfo) (*Model, error) {
	if info.APIVersion != APIVersion {
		return nil, fmt.Errorf("checkpoint: api version mismatch (got %d, want %d)", info.APIVersion, APIVersion)
	}

	switch info.AccessMode {
	case weights.AbsoluteAddress:
		return loadAbsolute(info)
	case weights.Mmap, weights.MallocCache:
		return loadFile(info)
	default:
		return nil, fmt.Errorf("checkpoint: unknown access mode %v", info.AccessMode)
	}
}

func resolvePath(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	fallback := filepath.Join(SearchPath, path)
	if _, err := os.Stat(fallback); err == nil {
		return fallback, nil
	}
	return "", fmt.Errorf("checkpoint: couldn't open file %q (also tried %q)", path, fallback)
}

func readHeaderBytes(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, 256)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("checkpoint: reading header from %q: %w", path, err)
	}
	return buf, nil
}

func loadFile(info LoadInfo) (*Model, error) {
	path, err := resolvePath(info.CheckpointPath)
	if err != nil {
		return nil, err
	}

	header, err := readHeaderBytes(path)
	if err != nil {
		return nil, err
	}

	cfg, bodyOffset, err := parseHeader(header)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var store weights.Store
	switch info.AccessMode {
	case weights.Mmap:
		store, err = weights.NewMmapStore(path, bodyOffset)
	case weights.MallocCache:
		store, err = weights.NewCacheStore(path, bodyOffset, info.CacheLimit)
	}
	if err != nil {
		return nil, err
	}

	return buildModel(cfg, weights.NewAccessor(info.AccessMode, store))
}

func loadAbsolute(info LoadInfo) (*Model, error) {
	if len(info.ModelBase) < 256 {
		return nil, fmt.Errorf("checkpoint: absolute model image too short for a header")
	}

	cfg, bodyOffset, err := parseHeader(info.ModelBase)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := weights.NewAbsoluteStore(info.ModelBase[bodyOffset:])
	return buildModel(cfg, weights.NewAccessor(info.AccessMode, store))
}

// buildModel finishes construction: lays out the body and, for INT8_V2,
// eagerly dequantizes the token embedding table, mirroring
// clamma_txf_construct's malloc+dequantize step. Layout offsets are always
// body-relative: every Store implementation already absorbs the
// file-header/body split internally (mmapStore and cacheStore via a base
// offset, absoluteStore via a pre-sliced body).
func buildModel(cfg weights.Config, accessor *weights.Accessor) (*Model, error) {
	layout := newLayout(cfg, 0)

	m := &Model{
		Config:   cfg,
		accessor: accessor,
		layout:   layout,
	}

	if cfg.Version == weights.FloatV1 {
		b, err := accessor.Fetch(layout.floatTokenEmbedding.offset, layout.floatTokenEmbedding.size)
		if err != nil {
			accessor.Close()
			return nil, err
		}
		m.tokenEmbedding = bytesToFloat32(b)
		return m, nil
	}

	qb, err := accessor.Fetch(layout.qTokens.q.offset, layout.qTokens.q.size)
	if err != nil {
		accessor.Close()
		return nil, err
	}
	sb, err := accessor.Fetch(layout.qTokens.s.offset, layout.qTokens.s.size)
	if err != nil {
		accessor.Close()
		return nil, err
	}
	qtok := weights.Quantized{Q: bytesToInt8(qb), S: bytesToFloat32(sb)}
	m.tokenEmbedding = weights.Dequantize(qtok, cfg.GroupSize)

	return m, nil
}
