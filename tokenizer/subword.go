package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/bpe"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// Subword is a file-backed BPE tokenizer built on sugarme/tokenizer. It is
// an alternative backend to WordPiece for larger corpora; the trained model
// is persisted next to the tokenizer path as <name>-vocab.json and
// <name>-merges.txt, the layout bpe.BPE.Save writes.
//
// The library keeps special tokens in its added vocabulary, after the model
// vocabulary, so ids are re-based here: [PAD], [UNK] and [BOS] occupy ids
// 0..2 and everything else follows in model order, the same contract
// WordPiece and the sequence packer rely on.
type Subword struct {
	t       *tk.Tokenizer
	idToTok []string
	tokToID map[string]int
}

// subwordFiles derives the vocab and merges file paths from a tokenizer
// path.
func subwordFiles(path string) (dir, prefix, vocabFile, mergesFile string) {
	dir = filepath.Dir(path)
	prefix = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	vocabFile = filepath.Join(dir, prefix+"-vocab.json")
	mergesFile = filepath.Join(dir, prefix+"-merges.txt")
	return dir, prefix, vocabFile, mergesFile
}

func newSubwordTokenizer(model tk.Model) *tk.Tokenizer {
	t := tk.NewTokenizer(model)
	t.WithNormalizer(normalizer.NewSequence([]normalizer.Normalizer{
		normalizer.NewNFKC(),
		normalizer.Lowercase(),
	}))
	t.WithPreTokenizer(pretokenizer.NewWhitespaceSplit())
	return t
}

func reservedAddedTokens() []tk.AddedToken {
	return []tk.AddedToken{
		tk.NewAddedToken(PadToken, true),
		tk.NewAddedToken(UnkToken, true),
		tk.NewAddedToken(StartToken, true),
	}
}

// Load opens whichever tokenizer backend is stored at path: a WordPiece
// vocabulary file at the path itself, or BPE model files next to it.
func Load(path string) (Tokenizer, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadWordPiece(path)
	}
	return LoadSubword(path)
}

// TrainOrLoadSubword loads a saved tokenizer stored next to tokPath, or
// trains one on corpusPath and saves it there.
func TrainOrLoadSubword(corpusPath, tokPath string, vocabSize int) (*Subword, error) {
	dir, prefix, vocabFile, _ := subwordFiles(tokPath)
	if _, err := os.Stat(vocabFile); err == nil {
		return LoadSubword(tokPath)
	}

	model, err := bpe.DefaultBPE()
	if err != nil {
		return nil, err
	}
	t := newSubwordTokenizer(model)

	trainer := bpe.NewBpeTrainer(2, vocabSize)
	trainer.SpecialTokens = reservedAddedTokens()
	// The trainer only persists the model vocabulary, so the reserved
	// tokens go into the initial alphabet to survive save/load.
	trainer.InitialAlphabet = bpe.CharSet{
		PadToken:   {},
		UnkToken:   {},
		StartToken: {},
	}

	if err := t.Train(trainer, []string{corpusPath}); err != nil {
		return nil, err
	}
	if trained, ok := t.GetModel().(bpe.BPE); ok {
		unk := UnkToken
		trained.UnkToken = &unk
		t.WithModel(trained)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if err := t.GetModel().Save(dir, prefix); err != nil {
		return nil, err
	}
	return newSubword(t)
}

// LoadSubword loads a previously trained tokenizer stored next to tokPath.
func LoadSubword(tokPath string) (*Subword, error) {
	_, _, vocabFile, mergesFile := subwordFiles(tokPath)
	model, err := bpe.NewBpeFromFiles(vocabFile, mergesFile)
	if err != nil {
		return nil, err
	}
	unk := UnkToken
	model.UnkToken = &unk
	t := newSubwordTokenizer(model)
	t.AddSpecialTokens(reservedAddedTokens())
	return newSubword(t)
}

func newSubword(t *tk.Tokenizer) (*Subword, error) {
	vocab := t.GetVocab(true)
	if len(vocab) == 0 {
		return nil, fmt.Errorf("tokenizer has an empty vocabulary")
	}
	for _, reserved := range []string{PadToken, UnkToken, StartToken} {
		if _, ok := vocab[reserved]; !ok {
			return nil, fmt.Errorf("vocabulary is missing reserved token %s", reserved)
		}
	}

	type entry struct {
		tok string
		id  int
	}
	rest := make([]entry, 0, len(vocab))
	for tok, id := range vocab {
		if tok == PadToken || tok == UnkToken || tok == StartToken {
			continue
		}
		rest = append(rest, entry{tok, id})
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].id != rest[j].id {
			return rest[i].id < rest[j].id
		}
		return rest[i].tok < rest[j].tok
	})

	idToTok := make([]string, 0, len(vocab))
	idToTok = append(idToTok, PadToken, UnkToken, StartToken)
	for _, e := range rest {
		idToTok = append(idToTok, e.tok)
	}
	tokToID := make(map[string]int, len(idToTok))
	for id, tok := range idToTok {
		tokToID[tok] = id
	}
	return &Subword{t: t, idToTok: idToTok, tokToID: tokToID}, nil
}

// Encode converts text to token IDs without start or padding tokens.
// Pieces outside the vocabulary map to the unknown token.
func (s *Subword) Encode(text string) []int {
	enc, err := s.t.EncodeSingle(text)
	if err != nil || enc == nil {
		return nil
	}
	out := make([]int, 0, len(enc.Tokens))
	for _, piece := range enc.Tokens {
		id, ok := s.tokToID[piece]
		if !ok {
			id = UnkID
		}
		out = append(out, id)
	}
	return out
}

// Decode converts token IDs back to space-joined pieces, dropping the
// reserved pad and start tokens.
func (s *Subword) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		if id == PadID || id == StartID || id < 0 || id >= len(s.idToTok) {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s.idToTok[id])
	}
	return sb.String()
}

// Train writes the text to a temporary corpus file and trains a fresh BPE
// model on it, replacing the current one.
func (s *Subword) Train(text string, vocabSize int) error {
	dir, err := os.MkdirTemp("", "subword-train")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	corpusPath := filepath.Join(dir, "corpus.txt")
	if err := os.WriteFile(corpusPath, []byte(text), 0o644); err != nil {
		return err
	}
	trained, err := TrainOrLoadSubword(corpusPath, filepath.Join(dir, "tokenizer.json"), vocabSize)
	if err != nil {
		return err
	}
	*s = *trained
	return nil
}

// Save writes the trained model next to path, as <name>-vocab.json and
// <name>-merges.txt.
func (s *Subword) Save(path string) error {
	dir, prefix, _, _ := subwordFiles(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return s.t.GetModel().Save(dir, prefix)
}

// VocabSize returns the size of the vocabulary.
func (s *Subword) VocabSize() int {
	return len(s.idToTok)
}

// IDToToken returns the piece for a token id, or [UNK] for out-of-range ids.
func (s *Subword) IDToToken(id int) string {
	if id < 0 || id >= len(s.idToTok) {
		return UnkToken
	}
	return s.idToTok[id]
}
