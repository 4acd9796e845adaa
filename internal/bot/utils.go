package bot

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
	"github.com/raine/telegram-nutri-bot/internal/storage"
)

func formatReplyText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

func parseCommand(s string) (string, []string) {
	parts := strings.Split(s, " ")
	// Commands in groups may be addressed as /today@botname
	command, _, _ := strings.Cut(parts[0], "@")
	return command, parts[1:]
}

// mealTypeFor infers the meal type from the local hour of day.
func mealTypeFor(hour int) string {
	switch {
	case hour < 11:
		return storage.MealTypeBreakfast
	case hour < 15:
		return storage.MealTypeLunch
	case hour < 21:
		return storage.MealTypeDinner
	default:
		return storage.MealTypeSnack
	}
}

// parseBarcodeCaption returns the caption as a barcode when it consists of
// 8 to 14 digits (EAN-8 through GTIN-14).
func parseBarcodeCaption(caption string) (string, bool) {
	code := strings.TrimSpace(caption)
	if len(code) < 8 || len(code) > 14 {
		return "", false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return code, true
}
