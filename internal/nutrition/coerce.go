package nutrition

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// ErrMalformedPayload means the model replied with text that held no usable estimate.
var ErrMalformedPayload = errors.New("malformed upstream payload")

const maxSuggestions = 5

// estimateSchema is the structural check applied before any field is read.
// Field values are deliberately unconstrained here; coerceFood and coerceTotals
// repair them one by one.
const estimateSchema = `{
	"type": "object",
	"required": ["detectedFoods"],
	"properties": {
		"detectedFoods": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": ["string", "null"]},
					"nutrition": {"type": ["object", "null"]}
				}
			}
		},
		"totalNutrition": {"type": ["object", "null"]},
		"suggestions": {"type": ["array", "string", "null"]}
	}
}`

var compiledEstimateSchema = jsonschema.MustCompileString("nutrition_estimate.json", estimateSchema)

var (
	caloriesKeys = []string{"calories", "kcal", "energyKcal"}
	proteinKeys  = []string{"proteinGrams", "protein"}
	carbsKeys    = []string{"carbsGrams", "carbs", "carbohydrates"}
	fatKeys      = []string{"fatGrams", "fat"}
	weightKeys   = []string{"estimatedWeightGrams", "estimatedWeight", "weightGrams", "weight"}
)

// Coerce extracts the first JSON object from text and shapes it into a
// NutritionEstimate. Any extraction, parse or shape problem yields an error
// wrapping ErrMalformedPayload; individual bad values are repaired instead.
func Coerce(text, lang string) (NutritionEstimate, error) {
	candidate, ok := ExtractJSONObject(text)
	if !ok {
		return NutritionEstimate{}, fmt.Errorf("%w: no JSON object found", ErrMalformedPayload)
	}
	if !gjson.Valid(candidate) {
		return NutritionEstimate{}, fmt.Errorf("%w: invalid JSON", ErrMalformedPayload)
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return NutritionEstimate{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := compiledEstimateSchema.Validate(doc); err != nil {
		return NutritionEstimate{}, fmt.Errorf("%w: shape mismatch: %v", ErrMalformedPayload, err)
	}

	parsed := gjson.Parse(candidate)
	msgs := catalogFor(lang)

	var foods []DetectedFood
	parsed.Get("detectedFoods").ForEach(func(_, item gjson.Result) bool {
		foods = append(foods, coerceFood(item, msgs.placeholderName))
		return true
	})

	totals, totalsOK := coerceTotals(parsed.Get("totalNutrition"))

	if len(foods) == 0 {
		placeholder := DetectedFood{
			Name:                 msgs.placeholderName,
			Confidence:           PlaceholderConfidence,
			EstimatedWeightGrams: SyntheticWeightGrams,
			Nutrition:            syntheticTotals(),
		}
		if totalsOK {
			placeholder.Nutrition = totals
		}
		foods = []DetectedFood{placeholder}
	}

	est := NutritionEstimate{
		DetectedFoods: foods,
		Suggestions:   coerceSuggestions(parsed.Get("suggestions")),
	}
	if totalsOK {
		est.TotalNutrition = totals
	} else {
		est.TotalNutrition = est.SumDetected()
	}
	// Individually finite values can still overflow when summed.
	if !est.TotalNutrition.Finite() {
		est.TotalNutrition = syntheticTotals()
	}
	return est, nil
}

// TotalsMismatch reports whether the stated totals disagree with the per-food sum
// by more than 10% of calories (or 1 kcal for tiny meals).
func TotalsMismatch(e NutritionEstimate) bool {
	sum := e.SumDetected()
	tolerance := math.Max(1, sum.Calories*0.1)
	return math.Abs(e.TotalNutrition.Calories-sum.Calories) > tolerance
}

func coerceFood(item gjson.Result, defaultName string) DetectedFood {
	name := strings.TrimSpace(item.Get("name").String())
	if name == "" {
		name = defaultName
	}

	confidence := SyntheticConfidence
	if v, ok := numberAt(item, "confidence"); ok {
		switch {
		case v <= 1:
			confidence = v
		case v <= 100:
			// Percentages are a common model habit.
			confidence = v / 100
		}
	}

	weight := SyntheticWeightGrams
	if v, ok := numberAt(item, weightKeys...); ok && v > 0 {
		weight = v
	}

	nutrition := syntheticTotals()
	if n := item.Get("nutrition"); n.IsObject() {
		nutrition = NutritionTotals{
			Calories:     numberOr(n, SyntheticCalories, caloriesKeys...),
			ProteinGrams: numberOr(n, SyntheticProteinGrams, proteinKeys...),
			CarbsGrams:   numberOr(n, SyntheticCarbsGrams, carbsKeys...),
			FatGrams:     numberOr(n, SyntheticFatGrams, fatKeys...),
		}
	}

	return DetectedFood{
		Name:                 name,
		Confidence:           confidence,
		EstimatedWeightGrams: weight,
		Nutrition:            nutrition,
	}
}

// coerceTotals accepts the totals only when all four values are usable.
func coerceTotals(res gjson.Result) (NutritionTotals, bool) {
	if !res.IsObject() {
		return NutritionTotals{}, false
	}
	cal, ok1 := numberAt(res, caloriesKeys...)
	pro, ok2 := numberAt(res, proteinKeys...)
	carb, ok3 := numberAt(res, carbsKeys...)
	fat, ok4 := numberAt(res, fatKeys...)
	if !(ok1 && ok2 && ok3 && ok4) {
		return NutritionTotals{}, false
	}
	return NutritionTotals{Calories: cal, ProteinGrams: pro, CarbsGrams: carb, FatGrams: fat}, true
}

func coerceSuggestions(res gjson.Result) []string {
	out := []string{}
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" && len(out) < maxSuggestions {
			out = append(out, s)
		}
	}
	switch {
	case res.IsArray():
		res.ForEach(func(_, v gjson.Result) bool {
			if v.Type == gjson.String {
				add(v.String())
			}
			return true
		})
	case res.Type == gjson.String:
		add(res.String())
	}
	return out
}

func numberOr(res gjson.Result, def float64, keys ...string) float64 {
	if v, ok := numberAt(res, keys...); ok {
		return v
	}
	return def
}

// numberAt reads the first present key as a finite, non-negative number.
// Numeric strings such as "120" or "120 kcal" are accepted.
func numberAt(res gjson.Result, keys ...string) (float64, bool) {
	for _, key := range keys {
		field := res.Get(key)
		if !field.Exists() {
			continue
		}
		return toNumber(field)
	}
	return 0, false
}

func toNumber(field gjson.Result) (float64, bool) {
	var v float64
	switch field.Type {
	case gjson.Number:
		v = field.Num
	case gjson.String:
		f, err := strconv.ParseFloat(leadingNumber(field.Str), 64)
		if err != nil {
			return 0, false
		}
		v = f
	default:
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

func leadingNumber(s string) string {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) {
		ch := s[end]
		if (ch >= '0' && ch <= '9') || ch == '.' || (end == 0 && (ch == '-' || ch == '+')) {
			end++
			continue
		}
		break
	}
	return s[:end]
}
