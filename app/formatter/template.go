package formatter

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{(.+?)\}\}`)

const literalPrefix = "text::"

type ReplaceOptions struct {
	SupportFallbacks bool
	Split            *PlaceholderSplit
}

// PlaceholderSplit limits individual placeholder values.
type PlaceholderSplit struct {
	Limits []PlaceholderLimit
}

// ReplaceTemplateString substitutes every {{accessor}} in template with the value
// found in values. Accessors may list fallbacks separated by "||" when enabled;
// a "text::" fallback is used literally.
func ReplaceTemplateString(values map[string]string, template string, opts ReplaceOptions) string {
	if template == "" {
		return ""
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		accessor := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])

		value, used := resolveAccessor(values, accessor, opts.SupportFallbacks)

		if opts.Split != nil {
			if limit, ok := findLimit(opts.Split.Limits, used, accessor); ok && value != "" {
				appendString := ReplaceTemplateString(values, limit.AppendString, ReplaceOptions{SupportFallbacks: opts.SupportFallbacks})
				value = ApplySplit(value, SplitOptions{
					AppendChar:               appendString,
					Limit:                    limit.CharacterCount,
					IsEnabled:                true,
					IncludeAppendInFirstPart: true,
				})[0]
			}
		}

		return value
	})
}

func resolveAccessor(values map[string]string, accessor string, fallbacks bool) (value, used string) {
	if !fallbacks {
		return values[accessor], accessor
	}

	for _, candidate := range strings.Split(accessor, "||") {
		if strings.HasPrefix(candidate, literalPrefix) {
			return strings.TrimPrefix(candidate, literalPrefix), ""
		}
		if v := values[candidate]; v != "" {
			return v, candidate
		}
	}
	return "", ""
}

// findLimit returns the limit for the placeholder that supplied the value. Literal
// fallbacks (used == "") are never limited.
func findLimit(limits []PlaceholderLimit, used, accessor string) (PlaceholderLimit, bool) {
	if used == "" {
		return PlaceholderLimit{}, false
	}
	for _, l := range limits {
		if l.Placeholder == used || l.Placeholder == accessor {
			return l, true
		}
	}
	return PlaceholderLimit{}, false
}

// GenerateText replaces placeholders in content, truncating to limit when set.
// An empty result falls back to fallback.
func GenerateText(content string, values map[string]string, limit int, fallback string, supportFallbacks bool) string {
	if content == "" {
		return fallback
	}
	text := ReplaceTemplateString(values, content, ReplaceOptions{SupportFallbacks: supportFallbacks})
	if limit > 0 {
		text = TruncateText(text, limit)
	}
	if text == "" {
		return fallback
	}
	return text
}
