package record

// Dedup keeps the first occurrence of every identifier, preserving the order
// of first appearance. Items with an empty identifier never collide and are
// all kept. Dedup(Dedup(x)) equals Dedup(x).
func Dedup[T any](items []T, id func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		key := id(item)
		if key != "" {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}

// MergeRaw concatenates query result sets and drops repeated documents.
func MergeRaw(sets ...[]Raw) []Raw {
	var all []Raw
	for _, s := range sets {
		all = append(all, s...)
	}
	return Dedup(all, RawID)
}
