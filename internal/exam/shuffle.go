package exam

import "math/rand"

// ShuffleQuestions returns a Fisher-Yates permutation of ids when enabled,
// or the input slice unchanged when not. The caller supplies the random
// source so tests can seed it deterministically.
func ShuffleQuestions(rng *rand.Rand, ids []string, enabled bool) []string {
	if !enabled || len(ids) < 2 {
		return ids
	}
	out := make([]string, len(ids))
	copy(out, ids)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ShuffleOptions permutes a question's options the same way. The original
// slice is never mutated; scoring happens server-side against option ids,
// so order carries no meaning beyond presentation.
func ShuffleOptions(rng *rand.Rand, opts []Option, enabled bool) []Option {
	if !enabled || len(opts) < 2 {
		return opts
	}
	out := make([]Option, len(opts))
	copy(out, opts)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}
