package lm

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"unicode/utf8"
)

// SampleCorpus is a tiny Bulgarian corpus used for smoke tests and demos
// when no corpus file is given.
const SampleCorpus = `котката спи на покрива
кучето лае на двора цял ден
децата играят в парка
баба чете книга на внуците
морето е синьо и спокойно
планината е висока и красива
котката и кучето играят заедно
времето днес е слънчево
децата четат книга за морето
баба и дядо живеят на село
в парка има високи дървета
кучето спи под дървото
морето през лятото е топло
котката гони мишка в двора
внуците отиват на село при баба`

// Dataset holds line-oriented training text.
type Dataset struct {
	Lines []string
}

// LoadDataset reads a line-oriented text file, dropping blank lines and
// lines shorter than minRunes.
func LoadDataset(path string, minRunes int) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	ds := &Dataset{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || utf8.RuneCountInString(line) < minRunes {
			continue
		}
		ds.Lines = append(ds.Lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	if len(ds.Lines) == 0 {
		return nil, fmt.Errorf("corpus %s has no usable lines", path)
	}
	return ds, nil
}

// NewDatasetFromText builds a dataset from an in-memory string.
func NewDatasetFromText(text string, minRunes int) *Dataset {
	ds := &Dataset{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || utf8.RuneCountInString(line) < minRunes {
			continue
		}
		ds.Lines = append(ds.Lines, line)
	}
	return ds
}

// Text joins all lines, for tokenizer training.
func (d *Dataset) Text() string {
	return strings.Join(d.Lines, "\n")
}

// Len returns the number of lines.
func (d *Dataset) Len() int {
	return len(d.Lines)
}

// Shuffle reorders the lines using the given seed.
func (d *Dataset) Shuffle(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(d.Lines), func(i, j int) {
		d.Lines[i], d.Lines[j] = d.Lines[j], d.Lines[i]
	})
}

// Split divides the dataset into training and validation parts, with frac
// of the lines going to training.
func (d *Dataset) Split(frac float64) (train, val *Dataset) {
	n := int(float64(len(d.Lines)) * frac)
	if n < 1 {
		n = 1
	}
	if n > len(d.Lines) {
		n = len(d.Lines)
	}
	return &Dataset{Lines: d.Lines[:n]}, &Dataset{Lines: d.Lines[n:]}
}

// Batches groups the lines into batches of the given size. The final batch
// may be smaller.
func (d *Dataset) Batches(batchSize int) [][]string {
	if batchSize < 1 {
		batchSize = 1
	}
	var out [][]string
	for i := 0; i < len(d.Lines); i += batchSize {
		end := i + batchSize
		if end > len(d.Lines) {
			end = len(d.Lines)
		}
		out = append(out, d.Lines[i:end])
	}
	return out
}
