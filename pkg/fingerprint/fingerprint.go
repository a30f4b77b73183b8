package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Compute returns a stable hex digest of the given sync-relevant fields.
// Keys are sorted before hashing so map iteration order cannot change the
// result. Used to detect drift without re-sending unchanged data.
func Compute(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([][2]string, 0, len(keys))
	for _, k := range keys {
		ordered = append(ordered, [2]string{k, fields[k]})
	}

	// json.Marshal of a slice is deterministic.
	raw, err := json.Marshal(ordered)
	if err != nil {
		// Only unmarshalable types can fail here; string pairs never do.
		return ""
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
