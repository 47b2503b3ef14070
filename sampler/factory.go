package sampler

import "fmt"

// NewSampler creates a per-step sampler for the given method. Beam search is
// not a per-step sampler; it is handled by the Decoder directly.
func NewSampler(method SamplingMethod) (Sampler, error) {
	switch method {
	case SamplingGreedy:
		return &GreedySampler{}, nil
	case SamplingRandom:
		return &RandomSampler{}, nil
	case SamplingTopK:
		return &TopKSampler{}, nil
	case SamplingTopP:
		return &TopPSampler{}, nil
	default:
		return nil, fmt.Errorf("unsupported sampling method: %s", method)
	}
}

// AvailableSamplers returns the list of supported sampling methods.
func AvailableSamplers() []SamplingMethod {
	return []SamplingMethod{
		SamplingGreedy,
		SamplingRandom,
		SamplingTopK,
		SamplingTopP,
		SamplingBeam,
	}
}
