/*
Package nutrition turns whatever the upstream model produced into a well-formed
NutritionEstimate, and owns the synthetic estimate returned when nothing usable
came back.
*/
package nutrition

import "math"

// NutritionTotals holds macro totals. Every field is finite and >= 0.
type NutritionTotals struct {
	Calories     float64 `json:"calories"`
	ProteinGrams float64 `json:"proteinGrams"`
	CarbsGrams   float64 `json:"carbsGrams"`
	FatGrams     float64 `json:"fatGrams"`
}

// Add returns the field-wise sum.
func (t NutritionTotals) Add(o NutritionTotals) NutritionTotals {
	return NutritionTotals{
		Calories:     t.Calories + o.Calories,
		ProteinGrams: t.ProteinGrams + o.ProteinGrams,
		CarbsGrams:   t.CarbsGrams + o.CarbsGrams,
		FatGrams:     t.FatGrams + o.FatGrams,
	}
}

// Finite reports whether every field is a finite number.
func (t NutritionTotals) Finite() bool {
	for _, v := range []float64{t.Calories, t.ProteinGrams, t.CarbsGrams, t.FatGrams} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// DetectedFood is one identified item on the plate.
type DetectedFood struct {
	Name                 string          `json:"name"`
	Confidence           float64         `json:"confidence"`
	EstimatedWeightGrams float64         `json:"estimatedWeightGrams"`
	Nutrition            NutritionTotals `json:"nutrition"`
}

// NutritionEstimate is the canonical analysis result. DetectedFoods is never empty.
type NutritionEstimate struct {
	DetectedFoods  []DetectedFood  `json:"detectedFoods"`
	TotalNutrition NutritionTotals `json:"totalNutrition"`
	Suggestions    []string        `json:"suggestions"`
}

// SumDetected recomputes the totals from the individual foods.
func (e NutritionEstimate) SumDetected() NutritionTotals {
	var sum NutritionTotals
	for _, f := range e.DetectedFoods {
		sum = sum.Add(f.Nutrition)
	}
	return sum
}
