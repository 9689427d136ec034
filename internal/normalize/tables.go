package normalize

import "fmt"

// preferredUnits selects the unit quantity values are requested and reported
// in, keyed by resolved type name. Unknown types fall back to the
// dimensionless defaultUnit.
var preferredUnits = map[string]string{
	"step-count":                    "count",
	"flights-climbed":               "count",
	"heart-rate":                    "count/min",
	"resting-heart-rate":            "count/min",
	"walking-heart-rate-average":    "count/min",
	"respiratory-rate":              "count/min",
	"heart-rate-variability-sdnn":   "ms",
	"distance-walking-running":      "m",
	"distance-cycling":              "m",
	"distance-swimming":             "m",
	"height":                        "m",
	"active-energy-burned":          "kcal",
	"basal-energy-burned":           "kcal",
	"dietary-energy-consumed":       "kcal",
	"apple-exercise-time":           "min",
	"apple-stand-time":              "min",
	"body-mass":                     "kg",
	"lean-body-mass":                "kg",
	"body-mass-index":               "count",
	"body-fat-percentage":           "%",
	"oxygen-saturation":             "%",
	"blood-alcohol-content":         "%",
	"body-temperature":              "degC",
	"basal-body-temperature":        "degC",
	"blood-pressure-systolic":       "mmHg",
	"blood-pressure-diastolic":      "mmHg",
	"blood-glucose":                 "mg/dL",
	"vo2-max":                       "mL/kg/min",
	"dietary-water":                 "mL",
	"environmental-audio-exposure":  "dBASPL",
	"headphone-audio-exposure":      "dBASPL",
	"six-minute-walk-test-distance": "m",
	"walking-speed":                 "m/s",
	"walking-step-length":           "m",
}

const defaultUnit = "count"

// PreferredUnit returns the unit a quantity type should be queried in.
func PreferredUnit(typeName string) string {
	if u, ok := preferredUnits[typeName]; ok {
		return u
	}
	return defaultUnit
}

// categoryValueNames resolves enumerated category codes to readable labels,
// keyed by resolved type name. Codes missing from a table (or whole types
// missing a table) resolve to "unknown_<code>" so files stay parseable when
// the platform introduces new codes.
var categoryValueNames = map[string]map[int64]string{
	"sleep-analysis": {
		0: "inBed",
		1: "asleepUnspecified",
		2: "awake",
		3: "asleepCore",
		4: "asleepDeep",
		5: "asleepREM",
	},
	"apple-stand-hour": {
		0: "stood",
		1: "idle",
	},
	"low-heart-rate-event":         {0: "present"},
	"high-heart-rate-event":        {0: "present"},
	"irregular-heart-rhythm-event": {0: "present"},
	"mindful-session":              {0: "present"},
	"handwashing-event":            {0: "present"},
	"toothbrushing-event":          {0: "present"},
	"apple-walking-steadiness-event": {
		1: "initialLow",
		2: "initialVeryLow",
		4: "repeatLow",
		8: "repeatVeryLow",
	},
}

// CategoryValueName resolves a category code for the given resolved type
// name, falling back to "unknown_<code>".
func CategoryValueName(typeName string, code int64) string {
	if names, ok := categoryValueNames[typeName]; ok {
		if label, ok := names[code]; ok {
			return label
		}
	}
	return fmt.Sprintf("unknown_%d", code)
}

// workoutActivityNames resolves workout activity codes to readable labels.
var workoutActivityNames = map[int64]string{
	1:  "americanFootball",
	2:  "archery",
	4:  "badminton",
	5:  "baseball",
	6:  "basketball",
	8:  "boxing",
	9:  "climbing",
	11: "crossTraining",
	13: "cycling",
	16: "elliptical",
	20: "functionalStrengthTraining",
	21: "golf",
	22: "gymnastics",
	24: "hiking",
	25: "hockey",
	28: "martialArts",
	29: "mindAndBody",
	31: "paddleSports",
	33: "preparationAndRecovery",
	34: "racquetball",
	35: "rowing",
	37: "running",
	38: "sailing",
	41: "soccer",
	43: "squash",
	44: "stairClimbing",
	45: "surfingSports",
	46: "swimming",
	47: "tableTennis",
	48: "tennis",
	50: "traditionalStrengthTraining",
	51: "volleyball",
	52: "walking",
	53: "waterFitness",
	57: "yoga",
	58: "barre",
	59: "coreTraining",
	60: "crossCountrySkiing",
	61: "downhillSkiing",
	62: "flexibility",
	63: "highIntensityIntervalTraining",
	64: "jumpRope",
	65: "kickboxing",
	66: "pilates",
	67: "snowboarding",
	69: "stepTraining",
	72: "taiChi",
	73: "mixedCardio",
	74: "handCycling",
	75: "discSports",
	76: "fitnessGaming",
	77: "danceFitness",
	82: "swimBikeRun",
	83: "transition",
	84: "underwaterDiving",
}

// ActivityName resolves a workout activity code, falling back to
// "unknown_<code>".
func ActivityName(code int64) string {
	if label, ok := workoutActivityNames[code]; ok {
		return label
	}
	return fmt.Sprintf("unknown_%d", code)
}

// metadataValueNames resolves known enumerated integer metadata fields to
// readable labels, keyed by metadata key.
var metadataValueNames = map[string]map[int64]string{
	"HKMetadataKeyHeartRateMotionContext": {
		0: "notSet",
		1: "sedentary",
		2: "active",
	},
	"HKMetadataKeyVO2MaxTestType": {
		1: "maxExercise",
		2: "predictionSubMaxExercise",
		3: "predictionNonExercise",
	},
	"HKMetadataKeyBloodGlucoseMealTime": {
		1: "preprandial",
		2: "postprandial",
	},
	"HKMetadataKeyWorkoutSwimmingLocationType": {
		0: "unknown",
		1: "pool",
		2: "openWater",
	},
}
