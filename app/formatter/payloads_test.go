package formatter

import (
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/filters"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testArticle() FormattedArticle {
	return FormattedArticle{Article: feed.Article{
		Flattened: map[string]string{
			"id":          "1",
			"idHash":      "abc",
			"title":       "Hello",
			"link":        "https://example.com/post",
			"description": "Some description",
		},
		Raw: feed.RawDates{Date: "2024-01-02T03:04:05Z"},
	}}
}

func TestGeneratePayloads_ContentAndEmbed(t *testing.T) {
	payloads, err := generatePayloads(testArticle(), DeliveryOptions{
		Content: "New: {{title}}",
		Embeds:  []Embed{{Title: "{{title}}", URL: "{{link}}", Timestamp: "article"}},
	}, fixedNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(payloads) != 1 {
		t.Fatalf("Expected 1 payload, got %d", len(payloads))
	}
	p := payloads[0]
	if p.Content != "New: Hello" {
		t.Errorf("Expected content 'New: Hello', got %q", p.Content)
	}
	if len(p.Embeds) != 1 {
		t.Fatalf("Expected 1 embed, got %d", len(p.Embeds))
	}
	if p.Embeds[0].Title != "Hello" || p.Embeds[0].URL != "https://example.com/post" {
		t.Errorf("Unexpected embed: %+v", p.Embeds[0])
	}
	if p.Embeds[0].Timestamp != "2024-01-02T03:04:05.000Z" {
		t.Errorf("Expected article timestamp, got %q", p.Embeds[0].Timestamp)
	}
}

func TestGeneratePayloads_NowTimestamp(t *testing.T) {
	payloads, err := generatePayloads(testArticle(), DeliveryOptions{
		Embeds: []Embed{{Title: "t", Timestamp: "now"}},
	}, fixedNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if payloads[0].Embeds[0].Timestamp != "2024-05-01T12:00:00.000Z" {
		t.Errorf("Expected current timestamp, got %q", payloads[0].Embeds[0].Timestamp)
	}
}

func TestGeneratePayloads_EmptyIsDropped(t *testing.T) {
	payloads, err := generatePayloads(testArticle(), DeliveryOptions{
		Content: "{{missing}}",
		Embeds:  []Embed{{Title: "{{missing}}"}},
	}, fixedNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(payloads) != 0 {
		t.Errorf("Expected no payloads, got %d", len(payloads))
	}
}

func TestGeneratePayloads_Split(t *testing.T) {
	article := testArticle()
	article.Flattened["description"] = strings.Repeat("word ", 100)

	payloads, err := generatePayloads(article, DeliveryOptions{
		Content:      "{{description}}",
		SplitOptions: &SplitOptions{Limit: 100},
		Embeds:       []Embed{{Title: "{{title}}"}},
	}, fixedNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(payloads) < 2 {
		t.Fatalf("Expected multiple payloads, got %d", len(payloads))
	}
	for i, p := range payloads {
		if len(p.Content) > 100 {
			t.Errorf("Payload %d exceeds limit: %d", i, len(p.Content))
		}
		hasEmbeds := len(p.Embeds) > 0
		if hasEmbeds != (i == len(payloads)-1) {
			t.Errorf("Expected embeds only on last payload, payload %d has embeds=%v", i, hasEmbeds)
		}
	}
}

func TestGeneratePayloads_EmbedLimits(t *testing.T) {
	embeds := make([]Embed, 12)
	for i := range embeds {
		embeds[i] = Embed{Title: strings.Repeat("x", 300), Fields: []EmbedField{{Name: "n", Value: ""}, {Name: "a", Value: "b"}}}
	}

	payloads, err := generatePayloads(testArticle(), DeliveryOptions{Embeds: embeds}, fixedNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got := payloads[0].Embeds
	if len(got) != 10 {
		t.Errorf("Expected 10 embeds, got %d", len(got))
	}
	if len(got[0].Title) != 256 {
		t.Errorf("Expected title truncated to 256, got %d", len(got[0].Title))
	}
	if len(got[0].Fields) != 1 {
		t.Errorf("Expected empty field dropped, got %d fields", len(got[0].Fields))
	}
}

func TestGeneratePayloads_Mentions(t *testing.T) {
	onlyGoodbye := &filters.RelationalExpression{
		Op:    filters.OpEq,
		Left:  filters.RelationalLeft{Type: filters.LeftArticle, Value: "title"},
		Right: filters.RelationalRight{Type: filters.RightString, Value: "Goodbye"},
	}

	payloads, err := generatePayloads(testArticle(), DeliveryOptions{
		Content: "{{discord::mentions}} {{title}}",
		Mentions: []MentionTarget{
			{ID: "1", Type: "role"},
			{ID: "2", Type: "user"},
			{ID: "3", Type: "user", Filters: onlyGoodbye},
		},
	}, fixedNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if payloads[0].Content != "<@&1> <@2> Hello" {
		t.Errorf("Expected mentions in content, got %q", payloads[0].Content)
	}
}

func TestGeneratePayloads_LegacyComponents(t *testing.T) {
	payloads, err := generatePayloads(testArticle(), DeliveryOptions{
		Content: "{{title}}",
		Components: []ActionRowInput{{
			Type:       ComponentActionRow,
			Components: []ButtonInput{{Type: ComponentButton, Style: ButtonStyleLink, Label: "{{title}}", URL: "https://example.com/a b"}},
		}},
	}, fixedNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	button := payloads[0].Components[0].Components[0]
	if button.Label != "Hello" {
		t.Errorf("Expected label 'Hello', got %q", button.Label)
	}
	if button.URL != "https://example.com/a%20b" {
		t.Errorf("Expected encoded url, got %q", button.URL)
	}
}

func TestGeneratePayloads_ComponentsV2(t *testing.T) {
	payloads, err := generatePayloads(testArticle(), DeliveryOptions{
		Content: "ignored",
		ComponentsV2: []ComponentV2Input{
			{
				Type:       "CONTAINER",
				Components: []ComponentV2Input{{Type: "TEXT_DISPLAY", Content: " {{title}} "}, {Type: "MEDIA_GALLERY", Items: []MediaGalleryItemInput{{Media: MediaInput{URL: "{{missing}}"}}}}},
			},
			{
				Type:       "SECTION",
				Components: []ComponentV2Input{{Type: "TEXT_DISPLAY", Content: "x"}},
				Accessory:  &ComponentV2Input{Type: "BUTTON", Style: 1, Label: "Click"},
			},
		},
	}, fixedNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(payloads) != 1 {
		t.Fatalf("Expected 1 payload, got %d", len(payloads))
	}
	p := payloads[0]
	if p.Flags != ComponentsV2Flag {
		t.Errorf("Expected flags %d, got %d", ComponentsV2Flag, p.Flags)
	}
	if p.Content != "" {
		t.Errorf("Expected no content, got %q", p.Content)
	}

	container := p.Components[0]
	if len(container.Components) != 1 {
		t.Fatalf("Expected empty gallery removed, got %d children", len(container.Components))
	}
	if *container.Components[0].Content != "Hello" {
		t.Errorf("Expected trimmed text display, got %q", *container.Components[0].Content)
	}

	if p.Components[1].Accessory.CustomID == "" {
		t.Error("Expected custom_id on non-link button")
	}
}

func TestGeneratePayloads_ComponentsV2InvalidTopLevel(t *testing.T) {
	_, err := generatePayloads(testArticle(), DeliveryOptions{
		ComponentsV2: []ComponentV2Input{{Type: "TEXT_DISPLAY", Content: "x"}},
	}, fixedNow)
	if err == nil {
		t.Error("Expected error for text display at top level")
	}
}
