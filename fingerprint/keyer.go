package fingerprint

import "github.com/jonwraymond/inferstore/tensor"

// Keyer derives fingerprints for cacheable calls.
//
// Contract:
//   - Determinism: requests with equal canonical bytes get equal fingerprints,
//     regardless of input or output ordering.
//   - Concurrency: implementations must be safe for concurrent use.
//   - Validation: callers pass requests that already passed Validate.
type Keyer interface {
	// Infer fingerprints an inference request.
	Infer(r *tensor.Request) Fingerprint

	// ModelConfig fingerprints a model configuration lookup.
	ModelConfig(name, version string) Fingerprint
}

// Generator is the default Keyer.
type Generator struct {
	canon  *tensor.Canonicalizer
	hasher Hasher
}

// NewGenerator combines a canonicalizer and a hasher. Nil arguments select
// default matching options and XXH3.
func NewGenerator(canon *tensor.Canonicalizer, hasher Hasher) *Generator {
	if canon == nil {
		canon = tensor.NewCanonicalizer(tensor.Options{})
	}
	if hasher == nil {
		hasher = XXH3{}
	}
	return &Generator{canon: canon, hasher: hasher}
}

// Infer returns the fingerprint of an inference request.
func (g *Generator) Infer(r *tensor.Request) Fingerprint {
	return g.hasher.Sum(g.canon.Infer(r))
}

// ModelConfig returns the fingerprint of a (name, version) config lookup.
func (g *Generator) ModelConfig(name, version string) Fingerprint {
	return g.hasher.Sum(g.canon.ModelConfig(name, version))
}

// Hasher returns the hasher in use.
func (g *Generator) Hasher() Hasher {
	return g.hasher
}

var _ Keyer = (*Generator)(nil)
