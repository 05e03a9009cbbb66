package processing

import (
	"context"
	"fmt"
	"strings"
)

// TitleResponse represents the JSON response from OpenAI
type TitleResponse struct {
	Title string `json:"title" jsonschema_description:"A short, hooky title for the texting story"`
}

// titleResponseSchema is the cached schema
var titleResponseSchema = GenerateSchema[TitleResponse]()

// GenerateTitle asks OpenAI for a title for a texting story premise that
// differs from the titles already used.
func (d *Drafter) GenerateTitle(ctx context.Context, premise string, existingTitles []string) (string, error) {
	prompt := fmt.Sprintf(`You are naming a short vertical video that shows a text message conversation.

Premise: %s

The following titles have already been used:
%s

Generate a unique, engaging title for this conversation. The title should:
- Be relevant to the premise
- Be different from all existing titles
- Be catchy and engaging
- Be under 100 characters

Respond in JSON format with this structure:
{
  "title": "your generated title here"
}`, premise, formatExistingTitles(existingTitles))

	resp, err := getStructuredResponse[TitleResponse](ctx, d.client, d.model, "story_title", prompt, titleResponseSchema)
	if err != nil {
		return "", err
	}

	title := strings.TrimSpace(resp.Title)
	if title == "" {
		return "", fmt.Errorf("OpenAI returned empty title")
	}
	return title, nil
}

// formatExistingTitles formats the list of existing titles for the prompt
func formatExistingTitles(titles []string) string {
	var formatted []string
	for _, title := range titles {
		if title != "" {
			formatted = append(formatted, fmt.Sprintf("- %s", title))
		}
	}
	if len(formatted) == 0 {
		return "- None (this is the first video)"
	}
	return strings.Join(formatted, "\n")
}
