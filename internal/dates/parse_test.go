package dates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValue_AllFormatsAgreeOnCalendarDate(t *testing.T) {
	cases := []string{
		"2025-05-31",
		"05/31/2025",
		"31/05/2025",
		"2025/05/31",
		"31-05-2025",
		"2025-05-31 14:30:00",
		"2025-05-31T14:30:00Z",
		"2025-05-31T14:30:00.123Z",
		"2025-05-31T14:30:00+00:00",
		"2025-05-31T14:30:00",
		"1748692800",    // 2025-05-31 12:00:00 UTC
		"1748692800000", // same instant in milliseconds
		"1748692800000.5",
	}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			got, ok := ParseValue(raw, time.UTC)
			require.True(t, ok)
			assert.Equal(t, "2025-05-31", Format(got))
		})
	}
}

// Numeric input longer than ten characters is read as milliseconds.
func TestParseValue_NumericLengthDecidesUnit(t *testing.T) {
	cases := map[string]string{
		"9999999999":   "2286-11-20", // ten characters: seconds
		"10000000000":  "1970-04-26", // eleven characters: milliseconds
		"1748692800.5": "1970-01-21",
		"17486928.5":   "1970-07-22", // ten characters with a fraction: seconds
	}
	for raw, want := range cases {
		got, ok := ParseValue(raw, time.UTC)
		require.True(t, ok, raw)
		assert.Equal(t, want, Format(got), raw)
	}
}

func TestParseValue_USBeforeEU(t *testing.T) {
	got, ok := ParseValue("03/04/2025", time.UTC)
	require.True(t, ok)
	assert.Equal(t, "2025-03-04", Format(got))
}

func TestParseValue_Placeholders(t *testing.T) {
	for _, raw := range []string{"", "  ", "Invalid date", "undefined", "null", "yesterday", "2025-13-45"} {
		_, ok := ParseValue(raw, time.UTC)
		assert.False(t, ok, raw)
	}
}

func TestParse_FallsBackToDefault(t *testing.T) {
	def := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, def, Parse("not a date", def, time.UTC))
}

func TestParseValue_ZonedInputConvertedToLocation(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	got, ok := ParseValue("2025-05-31T20:00:00Z", loc)
	require.True(t, ok)
	assert.Equal(t, "2025-06-01", Format(got))
}

func TestParseDay(t *testing.T) {
	_, ok := ParseDay("2024-03-01", time.UTC)
	assert.True(t, ok)
	_, ok = ParseDay("03/01/2024", time.UTC)
	assert.False(t, ok)
}
