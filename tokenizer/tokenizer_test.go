package tokenizer

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// buildVocab writes a minimal test vocab file: reserved ids 0..2, a space
// (id 3), single-character pieces 'a','b','c' (ids 4..6), and one merged
// piece "ab" (id 7) with a high score so mergeBPE has something to exercise.
func buildVocab(t *testing.T) (string, uint32) {
	t.Helper()

	pieces := []string{"<unk>", "\n", "\n", " ", "a", "b", "c"}
	scores := []float32{0, 0, 0, 0, -1, -1, -1}

	pieces = append(pieces, "ab")
	scores = append(scores, 10.0)

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint32(2))

	for i, p := range pieces {
		binary.Write(&buf, binary.LittleEndian, scores[i])
		binary.Write(&buf, binary.LittleEndian, uint32(len(p)))
		buf.WriteString(p)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.bin")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path, uint32(len(pieces))
}

func TestLoadAndLookup(t *testing.T) {
	path, n := buildVocab(t)
	v, err := Load(path, n)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.MaxTokenLength() != 2 {
		t.Fatalf("MaxTokenLength = %d, want 2", v.MaxTokenLength())
	}
	if id := v.lookup("a"); id != 4 {
		t.Fatalf("lookup(a) = %d, want 4", id)
	}
	if id := v.lookup("zzz"); id != -1 {
		t.Fatalf("lookup(zzz) = %d, want -1", id)
	}
}

func TestEncodeEmptyWithBOSEOS(t *testing.T) {
	path, n := buildVocab(t)
	v, err := Load(path, n)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	toks := v.Encode("", true, true)
	if len(toks) != 2 || toks[0] != BOS || toks[1] != EOS {
		t.Fatalf("Encode(\"\") = %v, want [BOS EOS]", toks)
	}
}

func TestEncodeMergesHighestScorePair(t *testing.T) {
	path, n := buildVocab(t)
	v, err := Load(path, n)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	toks := v.Encode("ab", false, false)
	// dummy space prefix, then merged "ab" id.
	abID := uint32(7)
	found := false
	for _, tok := range toks {
		if tok == abID {
			found = true
		}
	}
	if !found {
		t.Fatalf("Encode(ab) = %v, expected merged id %d present", toks, abID)
	}
}

func TestDecodeStripsLeadingSpaceAfterBOS(t *testing.T) {
	path, n := buildVocab(t)
	v, err := Load(path, n)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	got := v.Decode(BOS, 3) // piece " "
	if got != "" {
		t.Fatalf("Decode(BOS, space) = %q, want empty", got)
	}
}

func TestDecodeHexEscape(t *testing.T) {
	path, n := buildVocab(t)
	v, err := Load(path, n)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	v.pieces = append(v.pieces, "<0x41>")
	got := v.Decode(0, uint32(len(v.pieces)-1))
	if got != "A" {
		t.Fatalf("Decode(<0x41>) = %q, want \"A\"", got)
	}
}
