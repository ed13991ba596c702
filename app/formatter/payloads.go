package formatter

import (
	"strings"
	"time"

	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/filters"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// GeneratePayloads builds the messages to send for a formatted article.
func GeneratePayloads(article FormattedArticle, opts DeliveryOptions) ([]Payload, error) {
	return generatePayloads(article, opts, time.Now())
}

func generatePayloads(article FormattedArticle, opts DeliveryOptions, now time.Time) ([]Payload, error) {
	values := copyValues(article.Flattened)
	if mentions := mentionsFor(opts.Mentions, article.Flattened); mentions != "" {
		values[mentionsKey] = mentions
	}

	replaceOpts := ReplaceOptions{SupportFallbacks: opts.EnablePlaceholderFallback}
	if len(opts.PlaceholderLimits) > 0 {
		replaceOpts.Split = &PlaceholderSplit{Limits: opts.PlaceholderLimits}
	}
	replace := func(s string) string {
		return ReplaceTemplateString(values, s, replaceOpts)
	}

	if len(opts.ComponentsV2) > 0 {
		components, err := buildComponentsV2(opts.ComponentsV2, replace)
		if err != nil {
			return nil, err
		}
		return []Payload{{Flags: ComponentsV2Flag, Components: components}}, nil
	}

	content := replace(opts.Content)

	var parts []string
	if opts.SplitOptions != nil {
		split := *opts.SplitOptions
		split.IsEnabled = true
		split.IncludeAppendInFirstPart = false
		parts = ApplySplit(content, split)
	} else {
		parts = []string{TruncateText(content, DefaultSplitLimit)}
	}

	payloads := make([]Payload, len(parts))
	for i, part := range parts {
		payloads[i].Content = part
	}

	last := &payloads[len(payloads)-1]
	last.Embeds = buildEmbeds(opts.Embeds, replace, article.Raw, now)
	if len(opts.Components) > 0 {
		last.Components = buildLegacyComponents(opts.Components, replace)
	}

	out := payloads[:0]
	for _, p := range payloads {
		if !p.isEmpty() {
			out = append(out, p)
		}
	}
	return out, nil
}

func mentionsFor(targets []MentionTarget, flattened map[string]string) string {
	var mentions []string
	for _, t := range targets {
		if t.Filters != nil && !filters.GetArticleFilterResults(t.Filters, flattened).Passed {
			continue
		}
		switch t.Type {
		case "role":
			mentions = append(mentions, "<@&"+t.ID+">")
		default:
			mentions = append(mentions, "<@"+t.ID+">")
		}
	}
	return strings.Join(mentions, " ")
}

func buildEmbeds(embeds []Embed, replace replacer, raw feed.RawDates, now time.Time) []EmbedPayload {
	var out []EmbedPayload
	for _, e := range embeds {
		p := EmbedPayload{
			Title:       TruncateText(replace(e.Title), 256),
			Description: TruncateText(replace(e.Description), 4096),
			URL:         replace(e.URL),
			Color:       e.Color,
		}

		if e.Image != nil {
			if url := encodeURLWhitespace(strings.TrimSpace(replace(e.Image.URL))); url != "" {
				p.Image = &EmbedPayloadMedia{URL: url}
			}
		}
		if e.Thumbnail != nil {
			if url := encodeURLWhitespace(strings.TrimSpace(replace(e.Thumbnail.URL))); url != "" {
				p.Thumbnail = &EmbedPayloadMedia{URL: url}
			}
		}

		if p.Title == "" && p.Description == "" && p.URL == "" && p.Image == nil && p.Thumbnail == nil {
			continue
		}

		if e.Footer != nil {
			if text := TruncateText(replace(e.Footer.Text), 2048); text != "" {
				p.Footer = &EmbedPayloadFooter{Text: text, IconURL: replace(e.Footer.IconURL)}
			}
		}
		if e.Author != nil {
			if name := TruncateText(replace(e.Author.Name), 256); name != "" {
				p.Author = &EmbedPayloadAuthor{Name: name, URL: replace(e.Author.URL), IconURL: replace(e.Author.IconURL)}
			}
		}

		for _, f := range e.Fields {
			name := TruncateText(replace(f.Name), 256)
			value := TruncateText(replace(f.Value), 1024)
			if name == "" || value == "" {
				continue
			}
			p.Fields = append(p.Fields, EmbedField{Name: name, Value: value, Inline: f.Inline})
		}

		switch e.Timestamp {
		case "now":
			p.Timestamp = now.UTC().Format(isoMillis)
		case "article":
			if raw.Date != "" {
				if t, err := time.Parse(time.RFC3339Nano, raw.Date); err == nil {
					p.Timestamp = t.UTC().Format(isoMillis)
				}
			}
		}

		out = append(out, p)
		if len(out) == maxEmbeds {
			break
		}
	}
	return out
}
