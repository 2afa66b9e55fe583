package analysis

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// CacheKey is the content address of one analysis: any change to the file,
// its language, the rule set or the model version yields a different key.
// Rule order does not matter.
func CacheKey(content, language string, rules []string, modelVersion string) string {
	sorted := make([]string, len(rules))
	copy(sorted, rules)
	sort.Strings(sorted)

	// Every field is length-prefixed so no two inputs share a byte stream.
	h := sha256.New()
	var n [8]byte
	write := func(s string) {
		binary.BigEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	write(content)
	write(language)
	binary.BigEndian.PutUint64(n[:], uint64(len(sorted)))
	h.Write(n[:])
	for _, r := range sorted {
		write(r)
	}
	write(modelVersion)
	return hex.EncodeToString(h.Sum(nil))
}
