package formatter

import (
	"strings"
	"unicode/utf8"
)

var defaultSplitChars = []string{".", "!", "?"}

// ApplySplit breaks text into parts that each fit within the configured limit.
// When splitting is disabled the input is returned as its single part.
func ApplySplit(text string, opts SplitOptions) []string {
	if !opts.IsEnabled {
		return []string{text}
	}
	if text == "" {
		return []string{""}
	}

	parts := splitText(text, opts)

	switch len(parts) {
	case 0:
		return []string{""}
	case 1:
		return []string{strings.TrimSpace(parts[0])}
	}

	last := len(parts) - 1
	parts[0] = strings.TrimLeft(opts.PrependChar+parts[0], " \t\n")
	if opts.IncludeAppendInFirstPart {
		parts[0] = parts[0] + opts.AppendChar
	} else {
		parts[last] = strings.TrimRight(parts[last]+opts.AppendChar, " \t\n")
	}

	return parts
}

// TruncateText returns the first part of text when split at limit.
func TruncateText(text string, limit int) string {
	if text == "" {
		return ""
	}
	parts := splitText(text, SplitOptions{Limit: limit})
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func splitText(text string, opts SplitOptions) []string {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultSplitLimit
	}
	splitChars := defaultSplitChars
	if opts.SplitChar != "" {
		splitChars = []string{opts.SplitChar}
	}

	useLimit := limit - utf8.RuneCountInString(opts.AppendChar) - utf8.RuneCountInString(opts.PrependChar)
	if useLimit < 1 {
		useLimit = 1
	}

	pieces := splitKeepingNewlines(strings.TrimSpace(text))

	for i := 0; i < len(pieces); i++ {
		piece := pieces[i]
		if utf8.RuneCountInString(piece) <= useLimit {
			continue
		}

		replacement := splitAfterChars(piece, splitChars)
		if len(replacement) <= 1 {
			replacement = splitOnSpaces(piece)
		}
		if len(replacement) <= 1 {
			replacement = chunkRunes(piece, useLimit)
		}

		pieces = append(pieces[:i], append(replacement, pieces[i+1:]...)...)
		i--
	}

	pieces = compact(pieces, useLimit)

	result := make([]string, 0, len(pieces))
	for _, p := range pieces {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func splitKeepingNewlines(text string) []string {
	var pieces []string
	for {
		idx := strings.IndexByte(text, '\n')
		if idx < 0 {
			break
		}
		if idx > 0 {
			pieces = append(pieces, text[:idx])
		}
		pieces = append(pieces, "\n")
		text = text[idx+1:]
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}

// splitAfterChars cuts text after every split char, keeping the char and the
// whitespace that follows it attached to the preceding piece.
func splitAfterChars(text string, chars []string) []string {
	var pieces []string
	start := 0
	for i := 0; i < len(text); {
		matched := ""
		for _, c := range chars {
			if c != "" && strings.HasPrefix(text[i:], c) {
				matched = c
				break
			}
		}
		if matched == "" {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}

		i += len(matched)
		for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
			i++
		}
		pieces = append(pieces, text[start:i])
		start = i
	}
	if start < len(text) {
		pieces = append(pieces, text[start:])
	}

	filtered := pieces[:0]
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func splitOnSpaces(text string) []string {
	words := strings.Fields(text)
	for i := range words {
		words[i] += " "
	}
	return words
}

func chunkRunes(text string, size int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for len(runes) > 0 {
		n := min(size, len(runes))
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return chunks
}

// compact merges neighbouring pieces while their combined length fits the limit.
func compact(pieces []string, limit int) []string {
	var out []string
	for _, p := range pieces {
		if n := len(out); n > 0 && utf8.RuneCountInString(out[n-1])+utf8.RuneCountInString(p) <= limit {
			out[n-1] += p
			continue
		}
		out = append(out, p)
	}
	return out
}
