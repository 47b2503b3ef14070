package tokenizer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func trainSubword(t *testing.T, dir, name string) *Subword {
	t.Helper()
	corpus := filepath.Join(dir, "corpus.txt")
	if err := os.WriteFile(corpus, []byte(trainText), 0o644); err != nil {
		t.Fatalf("write corpus: %v", err)
	}
	sw, err := TrainOrLoadSubword(corpus, filepath.Join(dir, name), 120)
	if err != nil {
		t.Fatalf("TrainOrLoadSubword failed: %v", err)
	}
	return sw
}

func TestSubwordReservedIDs(t *testing.T) {
	sw := trainSubword(t, t.TempDir(), "tokenizer.json")

	for id, tok := range []string{PadToken, UnkToken, StartToken} {
		if got := sw.IDToToken(id); got != tok {
			t.Errorf("Expected %s at id %d, got %s", tok, id, got)
		}
	}
}

func TestSubwordRoundTrip(t *testing.T) {
	sw := trainSubword(t, t.TempDir(), "tokenizer.json")

	text := "котката спи на покрива"
	ids := sw.Encode(text)
	if len(ids) == 0 {
		t.Fatal("Expected non-empty encoding")
	}
	for _, id := range ids {
		if id == PadID || id == StartID {
			t.Errorf("Encoded text contains reserved id %d", id)
		}
		if id < 0 || id >= sw.VocabSize() {
			t.Errorf("Encoded id %d outside vocabulary of size %d", id, sw.VocabSize())
		}
	}

	// BPE pieces carry no word-boundary markers, so compare ignoring spaces.
	decoded := strings.ReplaceAll(sw.Decode(ids), " ", "")
	want := strings.ReplaceAll(text, " ", "")
	if decoded != want {
		t.Errorf("Round trip failed: %q -> %v -> %q", text, ids, decoded)
	}
}

func TestSubwordSaveLoad(t *testing.T) {
	dir := t.TempDir()
	sw := trainSubword(t, dir, "tokenizer.json")

	loaded, err := LoadSubword(filepath.Join(dir, "tokenizer.json"))
	if err != nil {
		t.Fatalf("LoadSubword failed: %v", err)
	}
	if loaded.VocabSize() != sw.VocabSize() {
		t.Errorf("Vocab size changed after reload: %d != %d",
			loaded.VocabSize(), sw.VocabSize())
	}

	text := "кучето лае на двора"
	got := loaded.Encode(text)
	want := sw.Encode(text)
	if len(got) != len(want) {
		t.Fatalf("Encodings differ after reload: %v != %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("Encodings differ at %d: %v != %v", i, got, want)
		}
	}
}

func TestLoadPicksBackend(t *testing.T) {
	dir := t.TempDir()

	wp := trainedWordPiece(t)
	wpPath := filepath.Join(dir, "wordpiece.json")
	if err := wp.Save(wpPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	tok, err := Load(wpPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := tok.(*WordPiece); !ok {
		t.Errorf("Expected a WordPiece for %s, got %T", wpPath, tok)
	}

	trainSubword(t, dir, "subword.json")
	swPath := filepath.Join(dir, "subword.json")
	tok, err = Load(swPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := tok.(*Subword); !ok {
		t.Errorf("Expected a Subword for %s, got %T", swPath, tok)
	}
}
