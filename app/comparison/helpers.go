package comparison

import (
	"slices"
	"time"

	"github.com/lysyi3m/feed-relay/app/database"
	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/preview"
)

type dateCheck struct {
	articleDate *string
	ageMs       *int64
	passes      bool
}

// checkDate uses the first raw date placeholder that parses. Articles without a
// usable date and articles dated in the future pass.
func checkDate(article feed.Article, checks DateChecks, now time.Time) dateCheck {
	for _, placeholder := range checks.placeholders() {
		raw := rawDate(article, placeholder)
		if raw == "" {
			continue
		}
		t, err := feed.ParseDate(raw)
		if err != nil {
			continue
		}
		age := now.Sub(t).Milliseconds()
		return dateCheck{
			articleDate: &raw,
			ageMs:       &age,
			passes:      age < 0 || age <= checks.OldArticleDateDiffMs,
		}
	}
	return dateCheck{passes: true}
}

func rawDate(article feed.Article, placeholder string) string {
	switch placeholder {
	case "date":
		return article.Raw.Date
	case "pubdate":
		return article.Raw.PubDate
	default:
		return article.Flattened[placeholder]
	}
}

func fieldHashes(article feed.Article, fields []string) []database.FieldHash {
	var hashes []database.FieldHash
	for _, name := range fields {
		if value := article.Flattened[name]; value != "" {
			hashes = append(hashes, database.FieldHash{Name: name, HashedValue: database.HashValue(value)})
		}
	}
	return hashes
}

func active(names []string, stored map[string]struct{}) []string {
	out := []string{}
	for _, name := range names {
		if _, ok := stored[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func hashSet(articles []feed.Article) map[string]struct{} {
	set := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		set[a.IDHash()] = struct{}{}
	}
	return set
}

func sortedNames(names map[string]struct{}) []string {
	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func passFail(ok bool) preview.Status {
	if ok {
		return preview.StatusPassed
	}
	return preview.StatusFailed
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
