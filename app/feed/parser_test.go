package feed

import (
	"context"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
)

const rssData = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title> Test Feed </title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title>Test Item 1</title>
      <link>https://example.com/item1</link>
      <description><![CDATA[<p>Hello <img src="https://example.com/a.png"> <a href="https://example.com/more">more</a> [link] [comments]</p>]]></description>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <category>Technology</category>
      <category>Programming</category>
    </item>
    <item>
      <title>Test Item 2</title>
      <link>https://example.com/item2</link>
      <description>   Plain description   </description>
      <guid>item-2</guid>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestParser_Run(t *testing.T) {
	parser := NewParser(nil)

	result, err := parser.Run(rssData, ParseOptions{ParserRules: []ParserRule{ParserRuleRedditCommentLink}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if result.Feed.Title != "Test Feed" {
		t.Errorf("Expected feed title 'Test Feed', got: %q", result.Feed.Title)
	}
	if len(result.Articles) != 2 {
		t.Fatalf("Expected 2 articles, got: %d", len(result.Articles))
	}

	first := result.Articles[0]
	if first.ID() != "item-1" {
		t.Errorf("Expected id 'item-1', got: %s", first.ID())
	}
	if first.IDHash() != sha1Hex("item-1") {
		t.Errorf("Expected idHash to be sha1 of id, got: %s", first.IDHash())
	}
	if first.Flattened["title"] != "Test Item 1" {
		t.Errorf("Expected title 'Test Item 1', got: %s", first.Flattened["title"])
	}
	if first.Flattened["processed::categories"] != "Technology,Programming" {
		t.Errorf("Expected joined categories, got: %s", first.Flattened["processed::categories"])
	}
	if first.Flattened["categories__0"] != "Technology" {
		t.Errorf("Expected flattened category, got: %s", first.Flattened["categories__0"])
	}
	if first.Flattened["extracted::description::image1"] != "https://example.com/a.png" {
		t.Errorf("Expected extracted image, got: %s", first.Flattened["extracted::description::image1"])
	}
	if first.Flattened["extracted::description::anchor1"] != "https://example.com/more" {
		t.Errorf("Expected extracted anchor, got: %s", first.Flattened["extracted::description::anchor1"])
	}
	if first.Flattened["pubdate"] != "2023-07-03T10:00:00+00:00" {
		t.Errorf("Expected ISO pubdate, got: %s", first.Flattened["pubdate"])
	}
	if first.Raw.PubDate != "2023-07-03T10:00:00Z" {
		t.Errorf("Expected raw pubdate, got: %s", first.Raw.PubDate)
	}
	if _, ok := first.Flattened["processed::description::reddit1"]; !ok {
		t.Errorf("Expected reddit rule output")
	}

	second := result.Articles[1]
	if second.Flattened["description"] != "Plain description" {
		t.Errorf("Expected trimmed description, got: %q", second.Flattened["description"])
	}
}

func TestParser_Run_DateFormatting(t *testing.T) {
	parser := NewParser(nil)

	result, err := parser.Run(rssData, ParseOptions{FormatOptions: FormatOptions{
		DateFormat:   "YYYY-MM-DD HH:mm",
		DateTimezone: "Europe/Berlin",
	}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if got := result.Articles[0].Flattened["pubdate"]; got != "2023-07-03 12:00" {
		t.Errorf("Expected formatted pubdate '2023-07-03 12:00', got: %s", got)
	}
}

func TestParser_Run_InvalidFeed(t *testing.T) {
	parser := NewParser(nil)

	_, err := parser.Run("this is not a feed", ParseOptions{})
	if !IsInvalidFeedError(err) {
		t.Errorf("Expected InvalidFeedError, got: %v", err)
	}
}

func TestParser_Run_EmptyFeed(t *testing.T) {
	parser := NewParser(nil)

	result, err := parser.Run(`<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`, ParseOptions{})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(result.Articles) != 0 {
		t.Errorf("Expected no articles, got %d", len(result.Articles))
	}
}

func TestParser_Parse_Timeout(t *testing.T) {
	parser := NewParser(nil)

	_, err := parser.Parse(context.Background(), rssData, ParseOptions{Timeout: time.Nanosecond})
	if err != nil && !IsFeedParseTimeoutError(err) {
		t.Errorf("Expected nil or timeout error, got: %v", err)
	}
}

func TestIDResolver_Run(t *testing.T) {
	resolver := NewIDResolver()

	tests := []struct {
		name         string
		items        []*gofeed.Item
		expectedType string
		expectedIDs  []string
	}{
		{
			name:         "unique guids",
			items:        []*gofeed.Item{{GUID: "a", Link: "l1"}, {GUID: "b", Link: "l2"}},
			expectedType: "guid",
			expectedIDs:  []string{"a", "b"},
		},
		{
			name:         "duplicate guids fall back to link",
			items:        []*gofeed.Item{{GUID: "a", Link: "l1"}, {GUID: "a", Link: "l2"}},
			expectedType: "link",
			expectedIDs:  []string{"l1", "l2"},
		},
		{
			name:         "missing guid and link use title and pubdate",
			items:        []*gofeed.Item{{Title: "t", Published: "p1"}, {Title: "t", Published: "p2"}},
			expectedType: "title+pubdate",
			expectedIDs:  []string{"tp1", "tp2"},
		},
		{
			name:         "title only",
			items:        []*gofeed.Item{{Title: "t1"}, {Title: "t2"}},
			expectedType: "title",
			expectedIDs:  []string{"t1", "t2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idType, ids := resolver.Run(tt.items)
			if idType != tt.expectedType {
				t.Errorf("Expected id type %s, got %s", tt.expectedType, idType)
			}
			for i, id := range ids {
				if id != tt.expectedIDs[i] {
					t.Errorf("Expected id %s at %d, got %s", tt.expectedIDs[i], i, id)
				}
			}
		})
	}

	idType, ids := resolver.Run([]*gofeed.Item{{Description: "x"}, {Description: "y"}})
	if idType != "hash" {
		t.Errorf("Expected hash id type, got %s", idType)
	}
	if ids[0] == ids[1] || len(ids[0]) != 40 {
		t.Errorf("Expected distinct sha1 content hashes, got %v", ids)
	}
}
