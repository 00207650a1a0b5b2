package secret

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// RefPrefix starts every secret reference.
const RefPrefix = "secretref:"

// Ref names a value held by a provider: secretref:<provider>:<path>.
type Ref struct {
	Provider string
	Path     string
}

func (r Ref) String() string {
	return RefPrefix + r.Provider + ":" + r.Path
}

// ParseRef parses s when the whole of s is a reference.
func ParseRef(s string) (Ref, bool) {
	rest, ok := strings.CutPrefix(s, RefPrefix)
	if !ok {
		return Ref{}, false
	}
	provider, path, ok := strings.Cut(rest, ":")
	if !ok || provider == "" || path == "" {
		return Ref{}, false
	}
	return Ref{Provider: provider, Path: path}, true
}

// Resolver turns configuration values into plain strings.
//
// A value is first expanded with ExpandEnvStrict. A value that is a
// reference is then replaced by the provider's answer; references embedded
// in a longer value ("Bearer secretref:env:TOKEN") run to the next
// whitespace and are replaced in place. A nil Resolver only expands the
// environment.
type Resolver struct {
	providers map[string]Provider
	strict    bool
}

// NewResolver creates a resolver. A strict resolver rejects references
// that resolve to an empty string.
func NewResolver(strict bool, providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider, len(providers)), strict: strict}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds provider, replacing any provider with the same name.
func (r *Resolver) Register(provider Provider) {
	if r == nil || provider == nil {
		return
	}
	if r.providers == nil {
		r.providers = make(map[string]Provider)
	}
	r.providers[provider.Name()] = provider
}

// ResolveValue resolves one value.
func (r *Resolver) ResolveValue(ctx context.Context, value string) (string, error) {
	expanded, err := ExpandEnvStrict(value)
	if err != nil || r == nil {
		return expanded, err
	}
	if ref, ok := ParseRef(expanded); ok {
		return r.lookup(ctx, ref)
	}
	if !strings.Contains(expanded, RefPrefix) {
		return expanded, nil
	}
	return r.replaceEmbedded(ctx, expanded)
}

// ResolveSlice resolves every element of values.
func (r *Resolver) ResolveSlice(ctx context.Context, values []string) ([]string, error) {
	if values == nil {
		return nil, nil
	}
	out := make([]string, len(values))
	for i, v := range values {
		s, err := r.ResolveValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

// ResolveMap resolves every value of input. Keys are visited in sorted
// order so the reported error is stable.
func (r *Resolver) ResolveMap(ctx context.Context, input map[string]string) (map[string]string, error) {
	if input == nil {
		return nil, nil
	}
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(input))
	for _, k := range keys {
		s, err := r.ResolveValue(ctx, input[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

func (r *Resolver) lookup(ctx context.Context, ref Ref) (string, error) {
	p, ok := r.providers[ref.Provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, ref.Provider)
	}
	v, err := p.Resolve(ctx, ref.Path)
	if err != nil {
		return "", err
	}
	if r.strict && v == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyValue, ref)
	}
	return v, nil
}

func (r *Resolver) replaceEmbedded(ctx context.Context, s string) (string, error) {
	var b strings.Builder
	for {
		i := strings.Index(s, RefPrefix)
		if i < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		b.WriteString(s[:i])
		s = s[i:]

		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			end = len(s)
		}
		ref, ok := ParseRef(s[:end])
		if !ok {
			return "", fmt.Errorf("%w: %q", ErrInvalidReference, s[:end])
		}
		v, err := r.lookup(ctx, ref)
		if err != nil {
			return "", err
		}
		b.WriteString(v)
		s = s[end:]
	}
}
