package prompt

import (
    "encoding/json"
    "fmt"
    "strings"

    "github.com/bryanwahyu/texture-automaton/internal/domain/ai"
)

// StripCodeFences removes a surrounding ``` block from model output.
func StripCodeFences(text string) string {
    stripped := strings.TrimSpace(text)
    if !strings.HasPrefix(stripped, "```") {
        return stripped
    }
    lines := strings.Split(stripped, "\n")
    if len(lines) >= 3 && strings.HasPrefix(lines[0], "```") && strings.TrimSpace(lines[len(lines)-1]) == "```" {
        return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
    }
    return stripped
}

// ParseDescription decodes the JSON object the describe prompt asks for.
// Missing keys become empty strings and sentiment is normalised.
func ParseDescription(text string) (ai.Description, error) {
    body := StripCodeFences(text)
    if body == "" {
        return ai.Description{}, ai.ErrEmptyResponse
    }
    var raw map[string]any
    if err := json.Unmarshal([]byte(body), &raw); err != nil {
        return ai.Description{}, fmt.Errorf("%w: %v", ai.ErrMalformedDescription, err)
    }
    field := func(key string) string {
        v, ok := raw[key]
        if !ok || v == nil {
            return ""
        }
        if s, ok := v.(string); ok {
            return strings.TrimSpace(s)
        }
        return strings.TrimSpace(fmt.Sprint(v))
    }
    return ai.Description{
        Summary:     field("summary"),
        Caption:     field("caption"),
        Description: field("description"),
        Sentiment:   ai.ParseSentiment(field("sentiment")),
    }, nil
}
