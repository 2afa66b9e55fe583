package fixgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protocolzero/codepolice/internal/patch"
	"github.com/protocolzero/codepolice/models"
)

func TestSynthesizePrefixesByCategory(t *testing.T) {
	content := "a\nb\nc\n"
	cases := map[string]string{
		"Security":     "SECURITY:",
		"performance":  "PERF:",
		"logic-bug":    "BUG:",
		"code style":   "STYLE:",
		"maintenance":  "TODO:",
		"":             "TODO:",
	}
	for category, prefix := range cases {
		fixes := Synthesize(content, "x.go", "Go", []models.Issue{{ID: "i", Line: 2, Category: category, Message: "msg"}})
		require.Len(t, fixes, 1)
		assert.Equal(t, "// "+prefix+" msg\nb", fixes[0].FixedCode, "category %q", category)
	}
}

func TestSynthesizeClampsAndUsesSuggestedFix(t *testing.T) {
	content := "one\ntwo\nthree\n"
	fixes := Synthesize(content, "x.py", "Python", []models.Issue{
		{ID: "far", Line: 40, EndLine: 50, Category: "security", Message: "m", SuggestedFix: "Use parameterized queries"},
		{ID: "zero", Line: 0, Category: "style", Message: "Too long"},
	})
	require.Len(t, fixes, 2)

	assert.Equal(t, 3, fixes[0].StartLine)
	assert.Equal(t, 3, fixes[0].EndLine)
	assert.Equal(t, "# SECURITY: Use parameterized queries\nthree", fixes[0].FixedCode)
	assert.Equal(t, "three", fixes[0].OriginalCode)

	assert.Equal(t, 1, fixes[1].StartLine)
	assert.Equal(t, "# STYLE: Too long\none", fixes[1].FixedCode)
}

func TestSynthesizeClosesBlockComments(t *testing.T) {
	cases := map[string]string{
		"HTML": "<!-- STYLE: Too long -->\n<p>x</p>",
		"CSS":  "/* STYLE: Too long */\n<p>x</p>",
		"SQL":  "-- STYLE: Too long\n<p>x</p>",
	}
	for language, want := range cases {
		fixes := Synthesize("<p>x</p>\n", "x", language, []models.Issue{{ID: "i", Line: 1, Category: "style", Message: "Too long"}})
		require.Len(t, fixes, 1)
		assert.Equal(t, want, fixes[0].FixedCode, language)
	}
}

func TestSynthesizedFixesApplyCleanly(t *testing.T) {
	content := "func f() {\n\tdb.Query(\"SELECT \" + id)\n}\n"
	fixes := Synthesize(content, "f.go", "Go", []models.Issue{{ID: "i", Line: 2, Category: "security", Message: "SQL injection"}})

	res := patch.ApplyMultipleFixes("f.go", content, fixes)
	require.Equal(t, 1, res.AppliedFixCount)
	assert.Equal(t, "func f() {\n\t// SECURITY: SQL injection\n\tdb.Query(\"SELECT \" + id)\n}\n", res.NewContent)
}
