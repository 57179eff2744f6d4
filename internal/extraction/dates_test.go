package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		raw      string
		iso      string
		method   string
		headline HeadlineKind
	}{
		{
			name:     "long form after ENDED with ordinal",
			text:     "DIPPED PRODUCTS PLC\nINTERIM REPORT FOR THE QUARTER ENDED 30TH JUNE 2024\nUnaudited",
			raw:      "30TH JUNE 2024",
			iso:      "2024-06-30",
			method:   MethodTextDirect,
			headline: HeadlineQuarter,
		},
		{
			name:     "SEPT abbreviation",
			text:     "Interim Report for the Quarter ended 30th Sept 2023",
			raw:      "30th Sept 2023",
			iso:      "2023-09-30",
			method:   MethodTextDirect,
			headline: HeadlineQuarter,
		},
		{
			name:     "separators between ENDED and the date",
			text:     "FOR THE YEAR ENDED: 31 MARCH 2024",
			raw:      "31 MARCH 2024",
			iso:      "2024-03-31",
			method:   MethodTextDirect,
			headline: HeadlineUnknown,
		},
		{
			name:     "annual headline",
			text:     "INTERIM REPORT FOR THE YEAR ENDED 31ST MARCH 2023",
			raw:      "31ST MARCH 2023",
			iso:      "2023-03-31",
			method:   MethodTextDirect,
			headline: HeadlineYear,
		},
		{
			name:   "numeric date with four-digit year",
			text:   "Six months ended 31/12/2023 (unaudited)",
			raw:    "31/12/2023",
			iso:    "2023-12-31",
			method: MethodTextNumeric,
		},
		{
			name:   "numeric date with two-digit year in 2000s",
			text:   "Quarter ended 30.06.24",
			raw:    "30.06.24",
			iso:    "2024-06-30",
			method: MethodTextNumeric,
		},
		{
			name:   "numeric date with two-digit year in 1900s",
			text:   "Period ended 31-3-98",
			raw:    "31-3-98",
			iso:    "1998-03-31",
			method: MethodTextNumeric,
		},
		{
			name:   "proximity within window",
			text:   "Financial statements for the three months ended as at 31 DECEMBER 2023",
			raw:    "31 DECEMBER 2023",
			iso:    "2023-12-31",
			method: MethodTextProximity,
		},
		{
			name:   "no date at all",
			text:   "Consolidated statement of comprehensive income",
			method: MethodNoMatch,
		},
		{
			name:   "empty page",
			text:   "",
			method: MethodNoMatch,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := ResolveDate(tc.text)
			assert.Equal(t, tc.raw, res.Raw)
			assert.Equal(t, tc.iso, res.ISODate())
			assert.Equal(t, tc.method, res.Method)
			assert.Equal(t, tc.headline, res.HeadlineKind)
			if tc.raw == "" {
				assert.True(t, res.Date.IsZero(), "date must be absent when raw is absent")
				assert.Equal(t, NoteNoDate, res.Note)
			}
		})
	}
}

func TestResolveDate_PrefersEndedAnchoredDate(t *testing.T) {
	text := "Dated 01 JANUARY 2020. Board approval on 15 FEBRUARY 2021 and more filler text here. " +
		"INTERIM REPORT FOR THE QUARTER ENDED 31ST DECEMBER 2023"

	res := ResolveDate(text)
	require.Equal(t, MethodTextDirect, res.Method)
	assert.Equal(t, "31ST DECEMBER 2023", res.Raw)
	assert.Equal(t, "2023-12-31", res.ISODate())
}

func TestResolveDate_ProximitySkipsDatesWithoutEnded(t *testing.T) {
	text := "Approved on 15 FEBRUARY 2021 by the board of directors of the company, " +
		"whose statements for the nine months ended on the date of 31 DECEMBER 2023 follow"

	res := ResolveDate(text)
	require.Equal(t, MethodTextProximity, res.Method)
	assert.Equal(t, "31 DECEMBER 2023", res.Raw)
}

func TestResolveDate_ProximityWindowIsBounded(t *testing.T) {
	filler := "xxxxxxxxxx xxxxxxxxxx xxxxxxxxxx xxxxxxxxxx xxxxxxxxxx xxxxxxxxxx xxxxxxxxxx xxxxxxxxxx"
	res := ResolveDate("period ended " + filler + " 31 DECEMBER 2023")
	assert.Equal(t, MethodNoMatch, res.Method)
	assert.Empty(t, res.Raw)
}

func TestResolveDate_MalformedCalendarDateFallsThrough(t *testing.T) {
	t.Run("invalid long form falls to numeric", func(t *testing.T) {
		res := ResolveDate("QUARTER ENDED 31 APRIL 2024 ... PERIOD ENDED 30/04/2024")
		assert.Equal(t, MethodTextNumeric, res.Method)
		assert.Equal(t, "2024-04-30", res.ISODate())
	})

	t.Run("invalid numeric date yields no match", func(t *testing.T) {
		res := ResolveDate("Quarter ended 31/02/2024")
		assert.Equal(t, MethodNoMatch, res.Method)
		assert.Empty(t, res.Raw)
		assert.Empty(t, res.ISODate())
	})

	t.Run("unknown month word yields no match", func(t *testing.T) {
		res := ResolveDate("Quarter ended 30 Juin 2024")
		assert.Equal(t, MethodNoMatch, res.Method)
	})
}

func TestResolveDate_HeadlineReportedWithoutDate(t *testing.T) {
	res := ResolveDate("INTERIM REPORT FOR THE YEAR ENDED (see note 1)")
	assert.Equal(t, HeadlineYear, res.HeadlineKind)
	assert.Equal(t, MethodNoMatch, res.Method)
}

func TestParseLongDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"25TH MARCH 2024", "2024-03-25"},
		{"1st January 2022", "2022-01-01"},
		{"2nd Feb 2020", "2020-02-02"},
		{"29 FEBRUARY 2024", "2024-02-29"},
		{"29 FEBRUARY 2023", ""},
		{"0 MARCH 2024", ""},
		{"MARCH 2024", ""},
		{"31 SEPTEMBER 2024", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			d, ok := parseLongDate(tc.input)
			if tc.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.want, d.Format("2006-01-02"))
		})
	}
}

func TestParseNumericDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"31/03/2024", "2024-03-31"},
		{"1.7.2023", "2023-07-01"},
		{"05-11-49", "2049-11-05"},
		{"05-11-50", "1950-11-05"},
		{"13/13/2024", ""},
		{"2024-03-31", ""},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			d, ok := parseNumericDate(tc.input)
			if tc.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tc.want, d.Format("2006-01-02"))
		})
	}
}

func TestLastRunes(t *testing.T) {
	assert.Equal(t, "", lastRunes("", 5))
	assert.Equal(t, "abc", lastRunes("abc", 5))
	assert.Equal(t, "bc", lastRunes("abc", 2))
	assert.Equal(t, "éé", lastRunes("aéé", 2))
}
