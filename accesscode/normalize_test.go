package accesscode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBirthdate_EquivalenceClass(t *testing.T) {
	inputs := []string{
		"09/08/2022",
		"9/8/2022",
		"08/09/2022",
		"8/9/2022",
		"09-08-2022",
		"9.8.2022",
		"  9/8/2022  ",
		"8.9.2022",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, ChildBirthdate, NormalizeBirthdate(in))
		})
	}
}

func TestNormalizeBirthdate_TextFormats(t *testing.T) {
	inputs := []string{
		"8 September 2022",
		"8th September 2022",
		"8th of September 2022",
		"8TH OF SEPTEMBER 2022",
		"8 september, 2022",
		"September 8, 2022",
		"September 8th, 2022",
		"september 8 2022",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, ChildBirthdate, NormalizeBirthdate(in))
		})
	}
}

func TestNormalizeBirthdate_Passthrough(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"01/01/2020", "01/01/2020"},
		{"  01/01/2020 ", "01/01/2020"},
		{"09/08/2021", "09/08/2021"},
		{"Sept 8, 2022", "Sept 8, 2022"},
		{"8 Smarch 2022", "8 Smarch 2022"},
		{"September 9th, 2022", "September 9th, 2022"},
		{"09/08", "09/08"},
		{"9/8/2022/1", "9/8/2022/1"},
		{"a/b/c", "a/b/c"},
		{"", ""},
		{"   ", "   "},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeBirthdate(tc.in))
		})
	}
}

func TestNormalizeBirthdate_PassthroughFailsComparison(t *testing.T) {
	digest := Hash(NormalizeBirthdate("01/01/2020"))
	assert.False(t, Compare(Hash(ChildBirthdate), digest))
}

func TestTextPatterns_Extract(t *testing.T) {
	samples := map[string]string{
		"day-month-year": "8th of September 2022",
		"month-day-year": "September 8th, 2022",
	}
	for _, p := range textPatterns {
		t.Run(p.name, func(t *testing.T) {
			m := p.re.FindStringSubmatch(samples[p.name])
			if !assert.NotNil(t, m) {
				return
			}
			day, month, year, ok := p.extract(m)
			assert.True(t, ok)
			assert.Equal(t, [3]int{8, 9, 2022}, [3]int{day, month, year})
		})
	}
}
