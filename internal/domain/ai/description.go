package ai

import "strings"

// Sentiment is the overall visual appeal reported by the model.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ParseSentiment maps free-form model output onto the closed sentiment set.
// Anything unrecognised is treated as neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Description is the structured result of describing one image.
type Description struct {
	Summary     string    `json:"summary"`
	Caption     string    `json:"caption"`
	Description string    `json:"description"`
	Sentiment   Sentiment `json:"sentiment"`
}
