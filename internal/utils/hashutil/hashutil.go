package hashutil

import (
	"encoding/hex"
	"encoding/json"
	"sort"

	"lukechampine.com/blake3"
)

func Blake3Hash(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// ParamsHash returns a short stable digest of a parameter set, used to name
// exported artifacts. Identical parameter sets always hash identically.
func ParamsHash(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	ordered := make([]any, 0, len(names)*2)
	for _, name := range names {
		ordered = append(ordered, name, params[name])
	}

	data, _ := json.Marshal(ordered)
	return Blake3Hash(data)[:8]
}
