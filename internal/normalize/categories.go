package normalize

import "sort"

// categoryTypes maps a user-facing category toggle to the underlying device
// type identifiers it enables. Categories may overlap; TypesForCategories
// de-duplicates so each type is queried exactly once per pass.
var categoryTypes = map[string][]string{
	"activity": {
		"HKQuantityTypeIdentifierStepCount",
		"HKQuantityTypeIdentifierDistanceWalkingRunning",
		"HKQuantityTypeIdentifierFlightsClimbed",
		"HKQuantityTypeIdentifierActiveEnergyBurned",
		"HKQuantityTypeIdentifierAppleExerciseTime",
		"HKCategoryTypeIdentifierAppleStandHour",
	},
	"heart": {
		"HKQuantityTypeIdentifierHeartRate",
		"HKQuantityTypeIdentifierRestingHeartRate",
		"HKQuantityTypeIdentifierWalkingHeartRateAverage",
		"HKQuantityTypeIdentifierHeartRateVariabilitySDNN",
		"HKCategoryTypeIdentifierLowHeartRateEvent",
		"HKCategoryTypeIdentifierHighHeartRateEvent",
		"HKCategoryTypeIdentifierIrregularHeartRhythmEvent",
	},
	"sleep": {
		"HKCategoryTypeIdentifierSleepAnalysis",
	},
	"body": {
		"HKQuantityTypeIdentifierBodyMass",
		"HKQuantityTypeIdentifierHeight",
		"HKQuantityTypeIdentifierBodyMassIndex",
		"HKQuantityTypeIdentifierBodyFatPercentage",
	},
	"vitals": {
		"HKQuantityTypeIdentifierOxygenSaturation",
		"HKQuantityTypeIdentifierRespiratoryRate",
		"HKQuantityTypeIdentifierBodyTemperature",
		"HKQuantityTypeIdentifierBloodPressureSystolic",
		"HKQuantityTypeIdentifierBloodPressureDiastolic",
		"HKQuantityTypeIdentifierHeartRate",
	},
	"fitness": {
		"HKQuantityTypeIdentifierVO2Max",
		"HKQuantityTypeIdentifierDistanceCycling",
		"HKQuantityTypeIdentifierDistanceSwimming",
		"HKQuantityTypeIdentifierActiveEnergyBurned",
	},
	"mindfulness": {
		"HKCategoryTypeIdentifierMindfulSession",
	},
	"nutrition": {
		"HKQuantityTypeIdentifierDietaryWater",
		"HKQuantityTypeIdentifierDietaryEnergyConsumed",
	},
	"workouts": {
		"HKWorkoutTypeIdentifier",
	},
}

// KnownCategory reports whether id is a recognized category toggle.
func KnownCategory(id string) bool {
	_, ok := categoryTypes[id]
	return ok
}

// KnownCategories returns all recognized category IDs, sorted.
func KnownCategories() []string {
	out := make([]string, 0, len(categoryTypes))
	for id := range categoryTypes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// TypesForCategories resolves the enabled category set to the de-duplicated,
// sorted list of device type identifiers to query. Unknown categories are
// ignored here; config validation rejects them up front.
func TypesForCategories(categories []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, cat := range categories {
		for _, t := range categoryTypes[cat] {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}
