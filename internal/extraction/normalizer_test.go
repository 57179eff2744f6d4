package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"only whitespace", " \t\n\r ", ""},
		{"non-breaking spaces", "INTERIM\u00a0REPORT\u00a0\u00a0FOR", "INTERIM REPORT FOR"},
		{"collapses runs", "QUARTER   ENDED\n\n31ST\tMARCH 2024", "QUARTER ENDED 31ST MARCH 2024"},
		{"trims", "  Revenue  ", "Revenue"},
		{"composes decomposed accents", "Socie\u0301te\u0301", "Soci\u00e9t\u00e9"},
		{"compatibility forms", "\uff21\uff22\uff23 \ufb01nance", "ABC finance"},
		{"em space", "31\u2003MARCH", "31 MARCH"},
		{"line separators", "31\u2028\u2028MARCH", "31 MARCH"},
		{"paragraph separator", "ENDED\u202931ST", "ENDED 31ST"},
		{"vertical tab", "31\vMARCH", "31 MARCH"},
		{"next line", "QUARTER\u0085ENDED", "QUARTER ENDED"},
		{"mixed unicode run", "31 \u2028\v\u0085\u3000 MARCH", "31 MARCH"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"  leading and trailing  ",
		"INTERIM REPORT FOR THE\n\nQUARTER ENDED 31ST MARCH 2024",
		"e\u0301 \u0301 \u0085 x\u000b y",
		"\u3000full\u3000width\u3000",
		"\ufb01\ufb02 \u2460 \u00bd",
		"(1,234)\t\t56,789.00\r\n",
	}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestNormalizeBlock_PreservesNewlines(t *testing.T) {
	got := normalizeBlock("Revenue   1,000\t\t2,000\nCost of sales   (500)")
	assert.Equal(t, "Revenue 1,000 2,000\nCost of sales (500)", got)
}

func TestFoldUpper(t *testing.T) {
	assert.Equal(t, "DATA/RAW/DIPD.N0000_03.PDF", foldUpper("data/raw/dipd.N0000_03.pdf"))
}

