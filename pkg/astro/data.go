// Package astro holds the static per-sign lookup tables and the daily
// prediction logic backing the get_daily_prediction tool.
package astro

import (
	"fmt"
	"strings"
	"time"
)

// Sign is one zodiac entry in the knowledge base.
type Sign struct {
	Name         string `json:"name"`
	Element      string `json:"element"`
	Traits       string `json:"traits"`
	LuckyColors  string `json:"lucky_colors"`
	LuckyNumbers string `json:"lucky_numbers"`
}

// signs is keyed by the lowercase English sign name.
var signs = map[string]Sign{
	"aries": {
		Name: "Aries", Element: "Fire",
		Traits:      "bold, energetic, a natural initiator who thrives on challenge",
		LuckyColors: "Red, Scarlet", LuckyNumbers: "1, 9, 19",
	},
	"taurus": {
		Name: "Taurus", Element: "Earth",
		Traits:      "grounded, patient, loyal, with a deep appreciation for comfort",
		LuckyColors: "Green, Pink", LuckyNumbers: "2, 6, 24",
	},
	"gemini": {
		Name: "Gemini", Element: "Air",
		Traits:      "curious, adaptable, quick-witted, a gifted communicator",
		LuckyColors: "Yellow, Light Green", LuckyNumbers: "3, 5, 23",
	},
	"cancer": {
		Name: "Cancer", Element: "Water",
		Traits:      "intuitive, nurturing, protective of the people they love",
		LuckyColors: "White, Silver", LuckyNumbers: "2, 7, 16",
	},
	"leo": {
		Name: "Leo", Element: "Fire",
		Traits:      "confident, generous, magnetic, born to lead and to perform",
		LuckyColors: "Gold, Orange", LuckyNumbers: "1, 4, 10",
	},
	"virgo": {
		Name: "Virgo", Element: "Earth",
		Traits:      "precise, analytical, quietly devoted to doing things well",
		LuckyColors: "Grey, Beige", LuckyNumbers: "5, 14, 23",
	},
	"libra": {
		Name: "Libra", Element: "Air",
		Traits:      "diplomatic, charming, always seeking balance and beauty",
		LuckyColors: "Blue, Lavender", LuckyNumbers: "4, 6, 13",
	},
	"scorpio": {
		Name: "Scorpio", Element: "Water",
		Traits:      "intense, perceptive, fiercely determined once committed",
		LuckyColors: "Maroon, Black", LuckyNumbers: "8, 11, 18",
	},
	"sagittarius": {
		Name: "Sagittarius", Element: "Fire",
		Traits:      "optimistic, freedom-loving, a philosopher and explorer",
		LuckyColors: "Purple, Turquoise", LuckyNumbers: "3, 9, 21",
	},
	"capricorn": {
		Name: "Capricorn", Element: "Earth",
		Traits:      "disciplined, ambitious, patient architect of long-term plans",
		LuckyColors: "Brown, Dark Green", LuckyNumbers: "6, 8, 26",
	},
	"aquarius": {
		Name: "Aquarius", Element: "Air",
		Traits:      "original, independent, driven by ideas and ideals",
		LuckyColors: "Electric Blue, Grey", LuckyNumbers: "4, 11, 22",
	},
	"pisces": {
		Name: "Pisces", Element: "Water",
		Traits:      "compassionate, imaginative, deeply attuned to feeling",
		LuckyColors: "Sea Green, Lilac", LuckyNumbers: "3, 7, 12",
	},
}

// Lookup returns the sign entry for a name, case-insensitively.
func Lookup(name string) (Sign, bool) {
	s, ok := signs[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Signs returns the knowledge base keyed by lowercase sign name.
func Signs() map[string]Sign {
	out := make(map[string]Sign, len(signs))
	for k, v := range signs {
		out[k] = v
	}
	return out
}

// gamblingWarning replaces lucky numbers on paydays (the 1st and 16th of
// the month, when lottery draws happen).
const gamblingWarning = "As for lucky numbers, remember that all investments carry risk! " +
	"Instead of testing fate, perhaps invest in some new clothes or a nice meal. " +
	"We do not endorse any form of gambling."

// DailyPrediction returns the deterministic daily-value text for a sign on
// the given date. Unknown signs produce a not-found message rather than an
// error so the model's turn is never left waiting.
func DailyPrediction(sign string, day time.Time) string {
	data, ok := Lookup(sign)
	if !ok {
		return "I couldn't find data for that sign."
	}

	luckyColor := data.LuckyColors
	if i := strings.Index(luckyColor, ","); i >= 0 {
		luckyColor = luckyColor[:i]
	}

	luckyNumberInfo := fmt.Sprintf("Your lucky numbers are %s.", data.LuckyNumbers)
	if d := day.Day(); d == 1 || d == 16 {
		luckyNumberInfo = gamblingWarning
	}

	return fmt.Sprintf("Your lucky color for today is %s. %s", luckyColor, luckyNumberInfo)
}
