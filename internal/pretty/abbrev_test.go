package pretty

import "testing"

func TestAbbrev(t *testing.T) {
	testcases := []struct {
		Input  string
		Ranges []int
		Want   string
	}{
		{"short", nil, "short"},
		{"exactlytwelv", nil, "exactlytwelv"},
		{"abcdefghijklmnop", nil, "abcdefghijkl…"},
		{"abcdefghijklmnop", []int{4}, "abcd…"},
		{"abcdefghijklmnop", []int{20, 4}, "abcdefghijklmnop"},
		{"abcdefghijklmnop", []int{10, 3}, "abc…"},
		{"ééééé", []int{3}, "ééé…"},
	}

	for i, tc := range testcases {
		if got := Abbrev(tc.Input, tc.Ranges...).String(); got != tc.Want {
			t.Errorf("case #%d: got: %q; want %q", i, got, tc.Want)
		}
	}
}
