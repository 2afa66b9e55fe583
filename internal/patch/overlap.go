package patch

import (
	"sort"

	"github.com/protocolzero/codepolice/models"
)

// Overlap is a pair of fixes for the same file whose line ranges intersect.
type Overlap struct {
	First  models.Fix
	Second models.Fix
}

// Overlaps reports every pair of fixes whose ranges intersect. It does not
// change how fixes are applied: the later-applied fix of an overlapping pair
// simply operates on the already-modified text.
func Overlaps(fixes []models.Fix) []Overlap {
	ordered := make([]models.Fix, len(fixes))
	copy(ordered, fixes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartLine < ordered[j].StartLine
	})

	var out []Overlap
	for i := range ordered {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j].StartLine > lastLine(ordered[i]) {
				break
			}
			out = append(out, Overlap{First: ordered[i], Second: ordered[j]})
		}
	}
	return out
}

func lastLine(f models.Fix) int {
	if f.EndLine < f.StartLine {
		return f.StartLine
	}
	return f.EndLine
}
