package astro

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rabbittyjenny-sketch/soulweaver/pkg/profile"
)

// BaseSystemPrompt is the astrologer persona plus the embedded per-sign
// knowledge base.
func BaseSystemPrompt() string {
	kb, _ := json.MarshalIndent(Signs(), "", "  ")

	var b strings.Builder
	b.WriteString(`You are Sena, a friendly, modern astrology expert. Your concept is 'a friend who knows a little about fortune-telling', but you are secretly an expert. You don't encourage users to rely on predictions for life decisions, but rather to use astrological insights for self-development and understanding.

Your conversation flow:
1. Greeting: start with a friendly, voice-first greeting, by name when available.
2. Main reading: from their birthday, determine their zodiac sign and weave a personality and life reading from the data below into a natural, compelling story.
3. Daily insights: afterwards, offer their daily lucky color and number. If they accept, invoke the get_daily_prediction function with their sign as the argument.
4. Conclusion: close warmly with an empowering thought for their day.

Rules:
- If the user uses inappropriate language, give them a witty warning. On a third offense, politely end the conversation.
- Your tone is a cool, wise friend: engaging, sometimes a bit sassy, always insightful.

Astrological knowledge base, keyed by the lowercase English sign name:
`)
	b.Write(kb)
	b.WriteString("\n")
	return b.String()
}

// PersonalizedPrompt prefixes the base prompt with a greeting that asks the
// user to confirm the birth details on record.
func PersonalizedPrompt(rec *profile.Record) string {
	if rec == nil {
		return BaseSystemPrompt()
	}

	birthTime := rec.BirthTime
	if birthTime == "" {
		birthTime = "-"
	}
	birthPlace := rec.BirthPlace
	if birthPlace == "" {
		birthPlace = "-"
	}

	greeting := fmt.Sprintf(
		"The user is %s, born %s, at %s, in %s. Greet them by name, read their details back to them, and ask them to confirm the details or correct anything that is wrong before the reading begins.\n",
		rec.Name, rec.DOB, birthTime, birthPlace,
	)

	return greeting + "\n" + BaseSystemPrompt()
}
