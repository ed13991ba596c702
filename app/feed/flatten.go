package feed

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// itemFields maps a parsed item onto the field names exposed to templates and filters.
func itemFields(item *gofeed.Item) map[string]any {
	fields := map[string]any{
		"title":   item.Title,
		"link":    item.Link,
		"guid":    item.GUID,
		"summary": item.Description,
		"content": item.Content,
	}

	if item.Content != "" {
		fields["description"] = item.Content
	} else {
		fields["description"] = item.Description
	}

	if item.PublishedParsed != nil {
		fields["pubdate"] = *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		fields["date"] = *item.UpdatedParsed
	} else if item.PublishedParsed != nil {
		fields["date"] = *item.PublishedParsed
	}

	if item.Author != nil {
		fields["author"] = item.Author.Name
	}
	if len(item.Authors) > 0 {
		authors := make([]any, 0, len(item.Authors))
		for _, a := range item.Authors {
			if a == nil {
				continue
			}
			authors = append(authors, map[string]any{"name": a.Name, "email": a.Email})
		}
		fields["authors"] = authors
	}

	if len(item.Categories) > 0 {
		categories := make([]any, 0, len(item.Categories))
		for _, c := range item.Categories {
			categories = append(categories, c)
		}
		fields["categories"] = categories
	}

	if item.Image != nil {
		fields["image"] = map[string]any{"url": item.Image.URL, "title": item.Image.Title}
	}

	if len(item.Enclosures) > 0 {
		enclosures := make([]any, 0, len(item.Enclosures))
		for _, e := range item.Enclosures {
			if e == nil {
				continue
			}
			enclosures = append(enclosures, map[string]any{"url": e.URL, "type": e.Type, "length": e.Length})
		}
		fields["enclosures"] = enclosures
	}

	for key, value := range item.Custom {
		fields[key] = value
	}

	for prefix, elements := range item.Extensions {
		for name, values := range elements {
			fields[prefix+":"+name] = extensionValues(values)
		}
	}

	return fields
}

func extensionValues(values []ext.Extension) any {
	if len(values) == 1 {
		return extensionValue(values[0])
	}
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, extensionValue(v))
	}
	return out
}

func extensionValue(e ext.Extension) any {
	if len(e.Attrs) == 0 && len(e.Children) == 0 {
		return e.Value
	}

	m := map[string]any{}
	if e.Value != "" {
		m["#"] = e.Value
	}
	if len(e.Attrs) > 0 {
		attrs := map[string]any{}
		for k, v := range e.Attrs {
			attrs[k] = v
		}
		m["@"] = attrs
	}
	for name, children := range e.Children {
		m[name] = extensionValues(children)
	}
	return m
}

// flattenFields collapses nested maps and slices into FieldDelimiter-joined keys.
func flattenFields(prefix string, value any, out map[string]any) {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenFields(joinKey(prefix, k), v[k], out)
		}
	case []any:
		for i, item := range v {
			flattenFields(joinKey(prefix, strconv.Itoa(i)), item, out)
		}
	default:
		out[prefix] = v
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + FieldDelimiter + key
}

// stringifyFields trims strings, formats dates and drops empty values.
func stringifyFields(flat map[string]any, opts FormatOptions) map[string]string {
	out := make(map[string]string, len(flat))

	for key, value := range flat {
		switch v := value.(type) {
		case nil:
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				out[key] = trimmed
			}
		case time.Time:
			if v.IsZero() {
				continue
			}
			formatted, err := FormatDate(v, opts.DateFormat, opts.DateTimezone, opts.DateLocale)
			if err != nil {
				formatted, _ = FormatDate(v, "", "", "")
			}
			out[key] = formatted
		default:
			if s := fmt.Sprint(v); s != "" {
				out[key] = s
			}
		}
	}

	return out
}
