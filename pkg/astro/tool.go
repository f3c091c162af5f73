package astro

import (
	"fmt"
	"time"

	"github.com/rabbittyjenny-sketch/soulweaver/pkg/tools"
)

// DailyPredictionTool returns the built-in get_daily_prediction tool,
// enabled by default.
func DailyPredictionTool() tools.Tool {
	return tools.Tool{
		Name:        "get_daily_prediction",
		Description: "Provides the lucky color and number for the day.",
		Parameters: map[string]any{
			"type": "OBJECT",
			"properties": map[string]any{
				"sign": map[string]any{
					"type":        "STRING",
					"description": `The zodiac sign of the user (e.g., "Aries", "Taurus").`,
				},
			},
			"required": []string{"sign"},
		},
		Enabled: true,
		Handler: func(args map[string]any) (string, error) {
			sign, _ := args["sign"].(string)
			if sign == "" {
				return "", fmt.Errorf("missing required argument %q", "sign")
			}
			return DailyPrediction(sign, time.Now()), nil
		},
	}
}
