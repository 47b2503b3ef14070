package tokenizer

import "testing"

func TestPackerPrependsStartAndPads(t *testing.T) {
	p := NewPacker(8)
	ids := []int{10, 11, 12}

	features := p.Pack(ids)
	if len(features) != 8 {
		t.Fatalf("Expected length 8, got %d", len(features))
	}
	want := []int{StartID, 10, 11, 12, PadID, PadID, PadID, PadID}
	for i := range want {
		if features[i] != want[i] {
			t.Errorf("Position %d: expected %d, got %d", i, want[i], features[i])
		}
	}
}

func TestPackerPairShiftsByOne(t *testing.T) {
	p := NewPacker(6)
	ids := []int{7, 8, 9}

	features, labels := p.PackPair(ids)
	if len(features) != 6 || len(labels) != 6 {
		t.Fatalf("Expected length 6, got %d and %d", len(features), len(labels))
	}
	// labels[i] must be the token that follows features[i].
	for i := 0; i < len(ids); i++ {
		if labels[i] != ids[i] {
			t.Errorf("Label %d: expected %d, got %d", i, ids[i], labels[i])
		}
		if features[i+1] != ids[i] {
			t.Errorf("Feature %d: expected %d, got %d", i+1, ids[i], features[i+1])
		}
	}
	if features[0] != StartID {
		t.Errorf("Expected features to start with %d, got %d", StartID, features[0])
	}
}

func TestPackerTruncatesLongSequences(t *testing.T) {
	p := NewPacker(4)
	ids := []int{5, 6, 7, 8, 9, 10}

	features, labels := p.PackPair(ids)
	wantFeatures := []int{StartID, 5, 6, 7}
	wantLabels := []int{5, 6, 7, 8}
	for i := 0; i < 4; i++ {
		if features[i] != wantFeatures[i] {
			t.Errorf("Feature %d: expected %d, got %d", i, wantFeatures[i], features[i])
		}
		if labels[i] != wantLabels[i] {
			t.Errorf("Label %d: expected %d, got %d", i, wantLabels[i], labels[i])
		}
	}
}

func TestPackerEmptyInput(t *testing.T) {
	p := NewPacker(5)

	features := p.Pack(nil)
	want := []int{StartID, PadID, PadID, PadID, PadID}
	for i := range want {
		if features[i] != want[i] {
			t.Errorf("Position %d: expected %d, got %d", i, want[i], features[i])
		}
	}
}

func TestPackerOnTokenizedEmptyString(t *testing.T) {
	wp := trainedWordPiece(t)
	p := NewPacker(10)

	features := p.Pack(wp.Encode(""))
	if len(features) != 10 {
		t.Fatalf("Expected length 10, got %d", len(features))
	}
	if features[0] != StartID {
		t.Errorf("Expected start token first, got %d", features[0])
	}
	for i := 1; i < len(features); i++ {
		if features[i] != PadID {
			t.Errorf("Position %d: expected pad, got %d", i, features[i])
		}
	}
}
