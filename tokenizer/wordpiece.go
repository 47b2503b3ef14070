package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Reserved token ids. The pad id must stay 0 so that padded positions can be
// skipped by id everywhere downstream.
const (
	PadToken   = "[PAD]"
	UnkToken   = "[UNK]"
	StartToken = "[BOS]"

	PadID   = 0
	UnkID   = 1
	StartID = 2
)

// ContinuationPrefix marks word-internal sub-word pieces.
const ContinuationPrefix = "##"

// Tokenizer defines the interface for a tokenizer backend. Both WordPiece
// and the BPE Subword satisfy it, so either can drive the language model.
type Tokenizer interface {
	Encode(text string) []int
	Decode(ids []int) string
	IDToToken(id int) string
	Train(text string, vocabSize int) error
	Save(path string) error
	VocabSize() int
}

// WordPiece implements a WordPiece sub-word tokenizer. Words are split into
// an initial piece plus "##"-prefixed continuation pieces; the vocabulary is
// grown by repeatedly merging the pair with the highest likelihood score
// count(ab) / (count(a) * count(b)).
type WordPiece struct {
	vocab    map[string]int
	vocabInv map[int]string
}

// NewWordPiece creates a new WordPiece tokenizer containing only the
// reserved tokens.
func NewWordPiece() *WordPiece {
	wp := &WordPiece{
		vocab:    make(map[string]int),
		vocabInv: make(map[int]string),
	}
	for id, tok := range []string{PadToken, UnkToken, StartToken} {
		wp.vocab[tok] = id
		wp.vocabInv[id] = tok
	}
	return wp
}

// Train learns a WordPiece vocabulary from the provided text until vocabSize
// is reached or no more pairs can be merged.
func (wp *WordPiece) Train(text string, vocabSize int) error {
	if vocabSize <= len(wp.vocab) {
		return fmt.Errorf("vocab size %d too small: %d ids are reserved", vocabSize, len(wp.vocab))
	}

	// Count whitespace-separated words, then represent each word as a
	// sequence of single-rune pieces ("к", "##о", "##т", ...).
	wordCounts := make(map[string]int)
	for _, w := range splitWords(text) {
		wordCounts[w]++
	}

	type wordEntry struct {
		pieces []string
		count  int
	}
	words := make([]*wordEntry, 0, len(wordCounts))
	for w, c := range wordCounts {
		words = append(words, &wordEntry{pieces: initialPieces(w), count: c})
	}

	// Seed the vocabulary with every single-rune piece.
	nextID := len(wp.vocab)
	for _, we := range words {
		for _, p := range we.pieces {
			if _, ok := wp.vocab[p]; !ok {
				wp.vocab[p] = nextID
				wp.vocabInv[nextID] = p
				nextID++
			}
		}
	}

	for len(wp.vocab) < vocabSize {
		// Count individual pieces and adjacent pairs over the corpus.
		pieceCounts := make(map[string]int)
		pairCounts := make(map[[2]string]int)
		for _, we := range words {
			for i, p := range we.pieces {
				pieceCounts[p] += we.count
				if i+1 < len(we.pieces) {
					pairCounts[[2]string{p, we.pieces[i+1]}] += we.count
				}
			}
		}
		if len(pairCounts) == 0 {
			break
		}

		// Pick the pair with the best WordPiece score.
		var best [2]string
		bestScore := -1.0
		for pair, c := range pairCounts {
			score := float64(c) / (float64(pieceCounts[pair[0]]) * float64(pieceCounts[pair[1]]))
			if score > bestScore {
				bestScore = score
				best = pair
			}
		}

		merged := best[0] + strings.TrimPrefix(best[1], ContinuationPrefix)
		if _, ok := wp.vocab[merged]; !ok {
			wp.vocab[merged] = nextID
			wp.vocabInv[nextID] = merged
			nextID++
		}

		// Rewrite every word with the merged piece.
		for _, we := range words {
			we.pieces = mergePair(we.pieces, best, merged)
		}
	}

	return nil
}

// Encode converts text to token IDs using greedy longest-match-first
// segmentation. A word with no matching prefix becomes a single [UNK].
func (wp *WordPiece) Encode(text string) []int {
	var ids []int
	for _, w := range splitWords(text) {
		ids = append(ids, wp.encodeWord(w)...)
	}
	return ids
}

func (wp *WordPiece) encodeWord(word string) []int {
	runes := []rune(word)
	var ids []int
	start := 0
	for start < len(runes) {
		end := len(runes)
		found := -1
		for end > start {
			piece := string(runes[start:end])
			if start > 0 {
				piece = ContinuationPrefix + piece
			}
			if id, ok := wp.vocab[piece]; ok {
				found = id
				break
			}
			end--
		}
		if found < 0 {
			// No prefix of the remaining word is known.
			return []int{UnkID}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}

// Decode converts token IDs back to text. Continuation pieces are glued to
// the previous piece, other pieces are space-separated. Pad and start tokens
// are dropped.
func (wp *WordPiece) Decode(ids []int) string {
	var sb strings.Builder
	first := true
	for _, id := range ids {
		if id == PadID || id == StartID {
			continue
		}
		piece, ok := wp.vocabInv[id]
		if !ok {
			piece = UnkToken
		}
		if cont, isCont := strings.CutPrefix(piece, ContinuationPrefix); isCont {
			sb.WriteString(cont)
			continue
		}
		if !first {
			sb.WriteByte(' ')
		}
		sb.WriteString(piece)
		first = false
	}
	return sb.String()
}

// VocabSize returns the current size of the vocabulary.
func (wp *WordPiece) VocabSize() int {
	return len(wp.vocab)
}

// TokenToID returns the id of a token and whether it is known.
func (wp *WordPiece) TokenToID(token string) (int, bool) {
	id, ok := wp.vocab[token]
	return id, ok
}

// IDToToken returns the token string for an id, or [UNK] if unknown.
func (wp *WordPiece) IDToToken(id int) string {
	if tok, ok := wp.vocabInv[id]; ok {
		return tok
	}
	return UnkToken
}

type wordPieceFile struct {
	Vocab map[string]int `json:"vocab"`
}

// Save writes the vocabulary to a JSON file.
func (wp *WordPiece) Save(path string) error {
	b, err := json.MarshalIndent(wordPieceFile{Vocab: wp.vocab}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// LoadWordPiece reads a vocabulary saved by Save.
func LoadWordPiece(path string) (*WordPiece, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f wordPieceFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("invalid vocabulary file %s: %w", path, err)
	}
	if len(f.Vocab) == 0 {
		return nil, fmt.Errorf("empty vocabulary in %s", path)
	}
	wp := &WordPiece{
		vocab:    f.Vocab,
		vocabInv: make(map[int]string, len(f.Vocab)),
	}
	for tok, id := range f.Vocab {
		wp.vocabInv[id] = tok
	}
	for id, tok := range []string{PadToken, UnkToken, StartToken} {
		if wp.vocabInv[id] != tok {
			return nil, fmt.Errorf("vocabulary %s does not reserve %s at id %d", path, tok, id)
		}
	}
	return wp, nil
}

// splitWords lowercases and splits text on whitespace.
func splitWords(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// initialPieces splits a word into single-rune pieces with continuation
// prefixes: "кот" -> ["к", "##о", "##т"].
func initialPieces(word string) []string {
	runes := []rune(word)
	pieces := make([]string, len(runes))
	for i, r := range runes {
		if i == 0 {
			pieces[i] = string(r)
		} else {
			pieces[i] = ContinuationPrefix + string(r)
		}
	}
	return pieces
}

// mergePair replaces adjacent occurrences of pair with the merged piece.
func mergePair(pieces []string, pair [2]string, merged string) []string {
	out := make([]string, 0, len(pieces))
	for i := 0; i < len(pieces); {
		if i+1 < len(pieces) && pieces[i] == pair[0] && pieces[i+1] == pair[1] {
			out = append(out, merged)
			i += 2
		} else {
			out = append(out, pieces[i])
			i++
		}
	}
	return out
}
