package feed

import (
	"github.com/lysyi3m/feed-relay/app/filters"
)

// FilteredArticle pairs an article with the outcome of the medium's filter expression.
type FilteredArticle struct {
	Article
	IsFiltered bool
	Result     filters.Result
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run evaluates expr against every article, keeping input order. A nil expression filters nothing.
func (f *Filterer) Run(articles []Article, expr filters.Expression) []FilteredArticle {
	out := make([]FilteredArticle, 0, len(articles))
	for _, article := range articles {
		result := filters.GetArticleFilterResults(expr, article.Flattened)
		out = append(out, FilteredArticle{
			Article:    article,
			IsFiltered: !result.Passed,
			Result:     result,
		})
	}
	return out
}

// Passing returns only the articles that were not filtered out.
func Passing(filtered []FilteredArticle) []Article {
	out := make([]Article, 0, len(filtered))
	for _, f := range filtered {
		if !f.IsFiltered {
			out = append(out, f.Article)
		}
	}
	return out
}
