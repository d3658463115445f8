package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Projector exposes the hash-relevant projection of a record.
type Projector interface {
	HashFields() map[string]any
}

// Of fingerprints a record through its projection.
func Of(p Projector) (string, error) {
	return Compute(p.HashFields())
}

// Compute returns the hex SHA-256 of the canonical JSON encoding of fields.
func Compute(fields map[string]any) (string, error) {
	data, err := json.Marshal(Canonicalize(fields))
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Canonicalize returns a copy of v with every slice sorted. Map keys need no treatment since
// encoding/json writes them in sorted order.
func Canonicalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Canonicalize(val)
		}
		return out
	case []string:
		out := append([]string(nil), t...)
		sort.Strings(out)
		return out
	case []int:
		out := append([]int(nil), t...)
		sort.Ints(out)
		return out
	case []float64:
		out := append([]float64(nil), t...)
		sort.Float64s(out)
		return out
	case []any:
		out := make([]any, len(t))
		keys := make([]string, len(t))
		for i, val := range t {
			out[i] = Canonicalize(val)
			// elements that cannot be encoded sort first; Compute reports the error
			b, _ := json.Marshal(out[i])
			keys[i] = string(b)
		}
		sort.Sort(byKey{out, keys})
		return out
	case []map[string]any:
		items := make([]any, len(t))
		for i, m := range t {
			items[i] = m
		}
		return Canonicalize(items)
	default:
		return v
	}
}

type byKey struct {
	vals []any
	keys []string
}

func (b byKey) Len() int           { return len(b.vals) }
func (b byKey) Less(i, j int) bool { return b.keys[i] < b.keys[j] }
func (b byKey) Swap(i, j int) {
	b.vals[i], b.vals[j] = b.vals[j], b.vals[i]
	b.keys[i], b.keys[j] = b.keys[j], b.keys[i]
}
