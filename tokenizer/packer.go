package tokenizer

// Packer turns raw token id sequences into fixed-length training pairs.
// Labels are the tokenizer output padded to SeqLen; features are the same
// sequence shifted right by prepending the start token, so the model at
// position i predicts labels[i] from features[:i+1].
type Packer struct {
	SeqLen  int
	StartID int
	PadID   int
}

// NewPacker creates a Packer with the reserved start and pad ids.
func NewPacker(seqLen int) *Packer {
	return &Packer{SeqLen: seqLen, StartID: StartID, PadID: PadID}
}

// Pack prepends the start token and fits the sequence to SeqLen.
// An empty input becomes [start, pad, pad, ...].
func (p *Packer) Pack(ids []int) []int {
	withStart := make([]int, 0, len(ids)+1)
	withStart = append(withStart, p.StartID)
	withStart = append(withStart, ids...)
	return p.fit(withStart)
}

// PackPair returns (features, labels) for next-token training.
func (p *Packer) PackPair(ids []int) (features, labels []int) {
	return p.Pack(ids), p.fit(ids)
}

// fit truncates or right-pads ids to exactly SeqLen.
func (p *Packer) fit(ids []int) []int {
	out := make([]int, p.SeqLen)
	for i := range out {
		if i < len(ids) {
			out[i] = ids[i]
		} else {
			out[i] = p.PadID
		}
	}
	return out
}
