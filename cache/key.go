package cache

import (
	"strings"
)

// Params is the parameter mapping a query is keyed by. Insertion order is
// irrelevant and nil values are treated as absent.
type Params map[string]any

// Clone returns a shallow copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Key identifies one query result: the resource name plus a stable digest of
// the parameters it was requested with.
type Key struct {
	Resource string
	Digest   string
}

// String renders the canonical form used for storage and prefix matching.
func (k Key) String() string {
	if k.Digest == "" {
		return k.Resource
	}
	return k.Resource + KeySeparator + k.Digest
}

// IsZero reports whether k names no resource.
func (k Key) IsZero() bool {
	return k.Resource == "" && k.Digest == ""
}

// Pairs splits the digest into its escaped name=value pairs.
func (k Key) Pairs() []string {
	if k.Digest == "" {
		return nil
	}
	return strings.Split(k.Digest, ParamSeparator)
}

// NewKey builds a key with the default serializer.
func NewKey(resource string, params Params) Key {
	return defaultSerializer.SerializeKey(resource, params)
}

// Matcher selects keys for invalidation and removal.
type Matcher func(Key) bool

// MatchAll selects every key.
func MatchAll() Matcher {
	return func(Key) bool { return true }
}

// MatchKey selects exactly one key.
func MatchKey(key Key) Matcher {
	return func(k Key) bool { return k == key }
}

// MatchPrefix selects keys whose canonical form starts with one of the given
// prefixes at a segment boundary: "getCategoryList" selects every parameter
// variant of that resource but not "getCategoryListArchive".
func MatchPrefix(prefixes ...string) Matcher {
	return func(k Key) bool {
		s := k.String()
		for _, prefix := range prefixes {
			if prefix == "" {
				continue
			}
			if s == prefix || strings.HasPrefix(s, prefix+KeySeparator) {
				return true
			}
			if strings.HasSuffix(prefix, KeySeparator) && strings.HasPrefix(s, prefix) {
				return true
			}
		}
		return false
	}
}

// MatchResource selects keys of resource whose parameters include every
// entry of subset. The comparison relies on the default digest format.
func MatchResource(resource string, subset Params) Matcher {
	want := NewKey(resource, subset).Pairs()
	return func(k Key) bool {
		if k.Resource != resource {
			return false
		}
		if len(want) == 0 {
			return true
		}
		have := make(map[string]struct{}, len(want))
		for _, pair := range k.Pairs() {
			have[pair] = struct{}{}
		}
		for _, pair := range want {
			if _, ok := have[pair]; !ok {
				return false
			}
		}
		return true
	}
}
