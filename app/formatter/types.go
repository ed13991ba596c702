package formatter

import (
	"github.com/lysyi3m/feed-relay/app/filters"
)

const (
	DefaultSplitLimit       = 2000
	ComponentsV2Flag        = 1 << 15
	maxEmbeds               = 10
	mentionsKey             = "discord::mentions"
	customPlaceholderPrefix = "custom::"
	defaultThreadName       = "New Article"
)

// Discord API component type numbers.
const (
	ComponentActionRow    = 1
	ComponentButton       = 2
	ComponentSection      = 9
	ComponentTextDisplay  = 10
	ComponentThumbnail    = 11
	ComponentMediaGallery = 12
	ComponentSeparator    = 14
	ComponentContainer    = 17
)

const (
	ButtonStyleLink  = 5
	threadTypePublic = 11
)

type FormatOptions struct {
	StripImages              bool                `json:"stripImages,omitempty" yaml:"strip_images"`
	FormatTables             bool                `json:"formatTables,omitempty" yaml:"format_tables"`
	DisableImageLinkPreviews bool                `json:"disableImageLinkPreviews,omitempty" yaml:"disable_image_link_previews"`
	IgnoreNewLines           bool                `json:"ignoreNewLines,omitempty" yaml:"ignore_new_lines"`
	CustomPlaceholders       []CustomPlaceholder `json:"customPlaceholders,omitempty" yaml:"custom_placeholders"`
}

type PlaceholderLimit struct {
	Placeholder    string `json:"placeholder" yaml:"placeholder"`
	CharacterCount int    `json:"characterCount" yaml:"character_count"`
	AppendString   string `json:"appendString,omitempty" yaml:"append_string"`
}

type SplitOptions struct {
	SplitChar                string `json:"splitChar,omitempty" yaml:"split_char"`
	AppendChar               string `json:"appendChar,omitempty" yaml:"append_char"`
	PrependChar              string `json:"prependChar,omitempty" yaml:"prepend_char"`
	Limit                    int    `json:"limit,omitempty" yaml:"limit"`
	IsEnabled                bool   `json:"isEnabled,omitempty" yaml:"enabled"`
	IncludeAppendInFirstPart bool   `json:"-" yaml:"-"`
}

type Emoji struct {
	ID       string  `json:"id" yaml:"id"`
	Name     *string `json:"name,omitempty" yaml:"name"`
	Animated *bool   `json:"animated,omitempty" yaml:"animated"`
}

type MentionTarget struct {
	ID      string             `json:"id" yaml:"id"`
	Type    string             `json:"type" yaml:"type"` // "user" or "role"
	Filters filters.Expression `json:"-" yaml:"-"`
}

type ForumTag struct {
	ID      string             `json:"id" yaml:"id"`
	Filters filters.Expression `json:"-" yaml:"-"`
}

type EmbedFooter struct {
	Text    string `json:"text,omitempty" yaml:"text"`
	IconURL string `json:"iconUrl,omitempty" yaml:"icon_url"`
}

type EmbedMedia struct {
	URL string `json:"url,omitempty" yaml:"url"`
}

type EmbedAuthor struct {
	Name    string `json:"name,omitempty" yaml:"name"`
	URL     string `json:"url,omitempty" yaml:"url"`
	IconURL string `json:"iconUrl,omitempty" yaml:"icon_url"`
}

type EmbedField struct {
	Name   string `json:"name" yaml:"name"`
	Value  string `json:"value" yaml:"value"`
	Inline bool   `json:"inline,omitempty" yaml:"inline"`
}

type Embed struct {
	Title       string       `json:"title,omitempty" yaml:"title"`
	Description string       `json:"description,omitempty" yaml:"description"`
	URL         string       `json:"url,omitempty" yaml:"url"`
	Color       *int         `json:"color,omitempty" yaml:"color"`
	Footer      *EmbedFooter `json:"footer,omitempty" yaml:"footer"`
	Image       *EmbedMedia  `json:"image,omitempty" yaml:"image"`
	Thumbnail   *EmbedMedia  `json:"thumbnail,omitempty" yaml:"thumbnail"`
	Author      *EmbedAuthor `json:"author,omitempty" yaml:"author"`
	Fields      []EmbedField `json:"fields,omitempty" yaml:"fields"`
	Timestamp   string       `json:"timestamp,omitempty" yaml:"timestamp"` // "now", "article" or ""
}

type ButtonInput struct {
	Type  int    `json:"type" yaml:"type"`
	Style int    `json:"style" yaml:"style"`
	Label string `json:"label" yaml:"label"`
	Emoji *Emoji `json:"emoji,omitempty" yaml:"emoji"`
	URL   string `json:"url,omitempty" yaml:"url"`
}

type ActionRowInput struct {
	Type       int           `json:"type" yaml:"type"`
	Components []ButtonInput `json:"components" yaml:"components"`
}

type MediaInput struct {
	URL string `json:"url" yaml:"url"`
}

type MediaGalleryItemInput struct {
	Media       MediaInput `json:"media" yaml:"media"`
	Description string     `json:"description,omitempty" yaml:"description"`
	Spoiler     *bool      `json:"spoiler,omitempty" yaml:"spoiler"`
}

// ComponentV2Input is a layout component keyed by Type: SECTION, TEXT_DISPLAY,
// THUMBNAIL, ACTION_ROW, BUTTON, SEPARATOR, CONTAINER or MEDIA_GALLERY.
type ComponentV2Input struct {
	Type        string                  `json:"type" yaml:"type"`
	Content     string                  `json:"content,omitempty" yaml:"content"`
	Components  []ComponentV2Input      `json:"components,omitempty" yaml:"components"`
	Accessory   *ComponentV2Input       `json:"accessory,omitempty" yaml:"accessory"`
	Media       *MediaInput             `json:"media,omitempty" yaml:"media"`
	Description string                  `json:"description,omitempty" yaml:"description"`
	Spoiler     *bool                   `json:"spoiler,omitempty" yaml:"spoiler"`
	Style       int                     `json:"style,omitempty" yaml:"style"`
	Label       string                  `json:"label,omitempty" yaml:"label"`
	Emoji       *Emoji                  `json:"emoji,omitempty" yaml:"emoji"`
	URL         string                  `json:"url,omitempty" yaml:"url"`
	Disabled    *bool                   `json:"disabled,omitempty" yaml:"disabled"`
	Divider     *bool                   `json:"divider,omitempty" yaml:"divider"`
	Spacing     *int                    `json:"spacing,omitempty" yaml:"spacing"`
	Items       []MediaGalleryItemInput `json:"items,omitempty" yaml:"items"`
	AccentColor *int                    `json:"accent_color,omitempty" yaml:"accent_color"`
}

// DeliveryOptions is the medium template used to generate payloads for one article.
type DeliveryOptions struct {
	Content                   string             `json:"content,omitempty" yaml:"content"`
	Embeds                    []Embed            `json:"embeds,omitempty" yaml:"embeds"`
	SplitOptions              *SplitOptions      `json:"splitOptions,omitempty" yaml:"split_options"`
	PlaceholderLimits         []PlaceholderLimit `json:"placeholderLimits,omitempty" yaml:"placeholder_limits"`
	EnablePlaceholderFallback bool               `json:"enablePlaceholderFallback,omitempty" yaml:"enable_placeholder_fallback"`
	Mentions                  []MentionTarget    `json:"mentions,omitempty" yaml:"-"`
	Components                []ActionRowInput   `json:"components,omitempty" yaml:"components"`
	ComponentsV2              []ComponentV2Input `json:"componentsV2,omitempty" yaml:"components_v2"`
}

type EmbedPayloadFooter struct {
	Text    string `json:"text"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedPayloadMedia struct {
	URL string `json:"url"`
}

type EmbedPayloadAuthor struct {
	Name    string `json:"name"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type EmbedPayload struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	URL         string              `json:"url,omitempty"`
	Color       *int                `json:"color,omitempty"`
	Footer      *EmbedPayloadFooter `json:"footer,omitempty"`
	Image       *EmbedPayloadMedia  `json:"image,omitempty"`
	Thumbnail   *EmbedPayloadMedia  `json:"thumbnail,omitempty"`
	Author      *EmbedPayloadAuthor `json:"author,omitempty"`
	Fields      []EmbedField        `json:"fields,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type MediaGalleryItem struct {
	Media       MediaInput `json:"media"`
	Description string     `json:"description,omitempty"`
	Spoiler     *bool      `json:"spoiler,omitempty"`
}

// Component is a rendered message component, either a legacy action row/button
// or any of the layout components.
type Component struct {
	Type        int                `json:"type"`
	Content     *string            `json:"content,omitempty"`
	Components  []Component        `json:"components,omitempty"`
	Accessory   *Component         `json:"accessory,omitempty"`
	Media       *MediaInput        `json:"media,omitempty"`
	Description string             `json:"description,omitempty"`
	Spoiler     *bool              `json:"spoiler,omitempty"`
	CustomID    string             `json:"custom_id,omitempty"`
	Style       int                `json:"style,omitempty"`
	Label       string             `json:"label,omitempty"`
	Emoji       *Emoji             `json:"emoji,omitempty"`
	URL         string             `json:"url,omitempty"`
	Disabled    *bool              `json:"disabled,omitempty"`
	Divider     *bool              `json:"divider,omitempty"`
	Spacing     *int               `json:"spacing,omitempty"`
	Items       []MediaGalleryItem `json:"items,omitempty"`
	AccentColor *int               `json:"accent_color,omitempty"`
}

type Payload struct {
	Content    string         `json:"content,omitempty"`
	Embeds     []EmbedPayload `json:"embeds,omitempty"`
	Components []Component    `json:"components,omitempty"`
	Flags      int            `json:"flags,omitempty"`
	Username   string         `json:"username,omitempty"`
	AvatarURL  string         `json:"avatar_url,omitempty"`
}

func (p Payload) isEmpty() bool {
	return p.Content == "" && len(p.Embeds) == 0 && len(p.Components) == 0
}
