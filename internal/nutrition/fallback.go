package nutrition

import (
	"hash/fnv"
	"strings"
)

// Canonical synthetic estimate. Every failure path uses these same values.
const (
	SyntheticConfidence   = 0.6
	SyntheticWeightGrams  = 180.0
	SyntheticCalories     = 350.0
	SyntheticProteinGrams = 15.0
	SyntheticCarbsGrams   = 40.0
	SyntheticFatGrams     = 12.0

	// PlaceholderConfidence marks the entry substituted for an empty food list.
	PlaceholderConfidence = 0.2
)

type messages struct {
	syntheticName     string
	placeholderName   string
	unavailable       []string
	notConfigured     []string
	chatUnavailable   string
	chatNotConfigured string
	tipPrefix         string
	tips              []string
}

var catalog = map[string]messages{
	"en": {
		syntheticName:   "Mixed meal (estimated)",
		placeholderName: "Unidentified food",
		unavailable: []string{
			"Automatic analysis is unavailable right now. Please log this meal manually for accurate tracking.",
			"These values are a conservative placeholder estimate, not a measurement of your meal.",
		},
		notConfigured: []string{
			"AI analysis is not configured on this server. Please log this meal manually.",
		},
		chatUnavailable:   "I'm sorry, I couldn't reach the nutrition assistant just now. Please try again in a moment.",
		chatNotConfigured: "I'm sorry, the AI nutrition assistant isn't configured on this server yet.",
		tipPrefix:         "In the meantime, a general tip:",
		tips: []string{
			"Fill half your plate with vegetables and fruit.",
			"Include a source of protein with every meal to stay full longer.",
			"Choose whole grains over refined grains when you can.",
			"Drink water regularly through the day instead of sugary drinks.",
			"Watch portion sizes; using a smaller plate can help.",
		},
	},
	"id": {
		syntheticName:   "Makanan campuran (perkiraan)",
		placeholderName: "Makanan tidak teridentifikasi",
		unavailable: []string{
			"Analisis otomatis sedang tidak tersedia. Silakan catat makanan ini secara manual agar pelacakan tetap akurat.",
			"Nilai ini adalah perkiraan sementara yang konservatif, bukan hasil pengukuran makanan Anda.",
		},
		notConfigured: []string{
			"Analisis AI belum dikonfigurasi di server ini. Silakan catat makanan ini secara manual.",
		},
		chatUnavailable:   "Mohon maaf, asisten nutrisi sedang tidak dapat dihubungi. Silakan coba lagi sebentar lagi.",
		chatNotConfigured: "Mohon maaf, asisten nutrisi AI belum dikonfigurasi di server ini.",
		tipPrefix:         "Sementara itu, tips umum:",
		tips: []string{
			"Isi setengah piring Anda dengan sayur dan buah.",
			"Sertakan sumber protein di setiap makan agar kenyang lebih lama.",
			"Pilih biji-bijian utuh dibanding yang olahan bila memungkinkan.",
			"Minum air putih secara teratur dan kurangi minuman manis.",
			"Perhatikan porsi; piring yang lebih kecil dapat membantu.",
		},
	},
}

func catalogFor(lang string) messages {
	if m, ok := catalog[strings.ToLower(lang)]; ok {
		return m
	}
	return catalog["en"]
}

// Tips returns the generic nutrition tips for lang.
func Tips(lang string) []string {
	return append([]string(nil), catalogFor(lang).tips...)
}

func syntheticTotals() NutritionTotals {
	return NutritionTotals{
		Calories:     SyntheticCalories,
		ProteinGrams: SyntheticProteinGrams,
		CarbsGrams:   SyntheticCarbsGrams,
		FatGrams:     SyntheticFatGrams,
	}
}

func syntheticFood(lang string) DetectedFood {
	return DetectedFood{
		Name:                 catalogFor(lang).syntheticName,
		Confidence:           SyntheticConfidence,
		EstimatedWeightGrams: SyntheticWeightGrams,
		Nutrition:            syntheticTotals(),
	}
}

// Synthetic returns the conservative estimate used when no upstream result is usable.
func Synthetic(lang string) NutritionEstimate {
	return newSynthetic(lang, catalogFor(lang).unavailable)
}

// SyntheticNotConfigured is Synthetic with a suggestion explaining AI is not set up.
func SyntheticNotConfigured(lang string) NutritionEstimate {
	return newSynthetic(lang, catalogFor(lang).notConfigured)
}

func newSynthetic(lang string, suggestions []string) NutritionEstimate {
	return NutritionEstimate{
		DetectedFoods:  []DetectedFood{syntheticFood(lang)},
		TotalNutrition: syntheticTotals(),
		Suggestions:    append([]string(nil), suggestions...),
	}
}

// chatFallback builds the reply used when the assistant produced nothing.
// The tip is picked from the message so repeated questions get the same answer.
func chatFallback(lang, message string, notConfigured bool) string {
	m := catalogFor(lang)
	lead := m.chatUnavailable
	if notConfigured {
		lead = m.chatNotConfigured
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(message))
	tip := m.tips[int(h.Sum32()%uint32(len(m.tips)))]
	return lead + " " + m.tipPrefix + " " + tip
}
