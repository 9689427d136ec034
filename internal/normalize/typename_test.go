package normalize

import "testing"

func TestResolveTypeName(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{"quantity type", "HKQuantityTypeIdentifierStepCount", "step-count"},
		{"category type", "HKCategoryTypeIdentifierSleepAnalysis", "sleep-analysis"},
		{"acronym tail", "HKQuantityTypeIdentifierHeartRateVariabilitySDNN", "heart-rate-variability-sdnn"},
		{"digit boundary", "HKQuantityTypeIdentifierVO2Max", "vo2-max"},
		{"acronym then lower", "HKQuantityTypeIdentifierABCEasy", "abc-easy"},
		{"strips to empty", "HKWorkoutTypeIdentifier", "workout"},
		{"generic marker fallback", "XYZTypeIdentifierBloodGlucose", "blood-glucose"},
		{"no prefix at all", "SomeVendorMetric", "some-vendor-metric"},
		{"already lowercase", "steps", "steps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTypeName(tt.identifier)
			if got != tt.want {
				t.Errorf("ResolveTypeName(%q) = %q, want %q", tt.identifier, got, tt.want)
			}
		})
	}
}

func TestResolveTypeName_Deterministic(t *testing.T) {
	inputs := []string{
		"HKQuantityTypeIdentifierStepCount",
		"HKWorkoutTypeIdentifier",
		"NoRecognizablePrefix",
	}
	for _, id := range inputs {
		first := ResolveTypeName(id)
		if first == "" {
			t.Errorf("ResolveTypeName(%q) = empty string", id)
		}
		for i := 0; i < 5; i++ {
			if got := ResolveTypeName(id); got != first {
				t.Errorf("ResolveTypeName(%q) not deterministic: %q then %q", id, first, got)
			}
		}
	}
}

// The category prefix is itself prefixed by "HKCategoryType"; a hypothetical
// shorter entry must never shadow the longer one.
func TestResolveTypeName_LongestPrefixWins(t *testing.T) {
	// "HKCategoryTypeIdentifier" and "HKC..." style overlaps: verify the
	// identifier resolves via the full prefix, not a partial strip through
	// the generic marker.
	got := ResolveTypeName("HKCategoryTypeIdentifierAppleStandHour")
	if got != "apple-stand-hour" {
		t.Errorf("got %q, want %q", got, "apple-stand-hour")
	}

	// The clinical prefix shares "HKC" with the category prefix.
	got = ResolveTypeName("HKClinicalTypeIdentifierAllergyRecord")
	if got != "allergy-record" {
		t.Errorf("got %q, want %q", got, "allergy-record")
	}
}
