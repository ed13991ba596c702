package formatter

import (
	"encoding/json"
	"fmt"

	"github.com/lysyi3m/feed-relay/app/filters"
)

type WebhookDetails struct {
	Name       string `json:"name,omitempty" yaml:"name"`
	IconURL    string `json:"iconUrl,omitempty" yaml:"icon_url"`
	ThreadName string `json:"threadName,omitempty" yaml:"thread_name"`
}

// GetForumTagsToSend returns the IDs of the tags whose filters pass for the article.
func GetForumTagsToSend(tags []ForumTag, flattened map[string]string) []string {
	ids := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag.Filters != nil && !filters.GetArticleFilterResults(tag.Filters, flattened).Passed {
			continue
		}
		ids = append(ids, tag.ID)
	}
	return ids
}

// GenerateThreadName renders the forum thread title for an article.
func GenerateThreadName(flattened map[string]string, template string, placeholders []CustomPlaceholder, supportFallbacks bool) (string, error) {
	values, _, err := ProcessCustomPlaceholders(copyValues(flattened), placeholders)
	if err != nil {
		return "", err
	}
	if template == "" {
		template = "{{title}}"
	}
	return GenerateText(template, values, 100, defaultThreadName, supportFallbacks), nil
}

// BuildForumThreadBody builds the request body that opens a forum thread with payload
// as its first message. Webhooks take the payload fields at the top level.
func BuildForumThreadBody(payload Payload, threadName string, tags []string, isWebhook bool) (map[string]any, error) {
	if tags == nil {
		tags = []string{}
	}

	if !isWebhook {
		return map[string]any{
			"name":         threadName,
			"message":      payload,
			"applied_tags": tags,
			"type":         threadTypePublic,
		}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	body := map[string]any{}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	body["thread_name"] = threadName
	body["applied_tags"] = tags
	return body, nil
}

// EnhancePayloadsWithWebhookDetails sets the webhook username and avatar on every payload.
func EnhancePayloadsWithWebhookDetails(payloads []Payload, flattened map[string]string, details WebhookDetails, supportFallbacks bool) []Payload {
	username := GenerateText(details.Name, flattened, 256, "", supportFallbacks)
	avatar := GenerateText(details.IconURL, flattened, 0, "", supportFallbacks)

	out := make([]Payload, len(payloads))
	for i, p := range payloads {
		p.Username = username
		p.AvatarURL = avatar
		out[i] = p
	}
	return out
}
