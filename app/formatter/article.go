package formatter

import (
	"maps"

	"github.com/lysyi3m/feed-relay/app/feed"
)

type FormattedArticle struct {
	feed.Article
	CustomPlaceholderPreviews [][]string `json:"customPlaceholderPreviews"`
}

// FormatArticleForDiscord converts every field of the article except its
// identifiers to Discord markdown, then evaluates custom placeholders.
func FormatArticleForDiscord(article feed.Article, opts FormatOptions) (FormattedArticle, error) {
	flattened := make(map[string]string, len(article.Flattened))
	for key, value := range article.Flattened {
		if key == "id" || key == "idHash" {
			flattened[key] = value
			continue
		}
		flattened[key] = FormatValueForDiscord(value, opts)
	}

	flattened, previews, err := ProcessCustomPlaceholders(flattened, opts.CustomPlaceholders)
	if err != nil {
		return FormattedArticle{}, err
	}

	return FormattedArticle{
		Article:                   feed.Article{Flattened: flattened, Raw: article.Raw},
		CustomPlaceholderPreviews: previews,
	}, nil
}

// FormatArticles formats each article in order, stopping at the first failure.
func FormatArticles(articles []feed.Article, opts FormatOptions) ([]FormattedArticle, error) {
	out := make([]FormattedArticle, 0, len(articles))
	for _, a := range articles {
		f, err := FormatArticleForDiscord(a, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func copyValues(values map[string]string) map[string]string {
	return maps.Clone(values)
}
