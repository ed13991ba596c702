package formatter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var whitespacePattern = regexp.MustCompile(`\s`)

func encodeURLWhitespace(u string) string {
	return whitespacePattern.ReplaceAllString(u, "%20")
}

type replacer func(string) string

// buildLegacyComponents renders action rows of buttons.
func buildLegacyComponents(rows []ActionRowInput, replace replacer) []Component {
	out := make([]Component, 0, len(rows))
	for _, row := range rows {
		buttons := make([]Component, 0, len(row.Components))
		for _, b := range row.Components {
			label := replace(b.Label)
			if label == "" {
				label = b.Label
			}
			buttons = append(buttons, Component{
				Type:  ComponentButton,
				Style: b.Style,
				Label: TruncateText(label, 80),
				URL:   encodeURLWhitespace(replace(b.URL)),
				Emoji: b.Emoji,
			})
		}
		out = append(out, Component{Type: ComponentActionRow, Components: buttons})
	}
	return out
}

// buildComponentsV2 renders top level layout components. Only action rows,
// separators, containers and sections may appear at the top level.
func buildComponentsV2(inputs []ComponentV2Input, replace replacer) ([]Component, error) {
	out := make([]Component, 0, len(inputs))
	for _, in := range inputs {
		switch in.Type {
		case "ACTION_ROW", "SEPARATOR", "CONTAINER", "SECTION":
		default:
			return nil, fmt.Errorf("unsupported top level component type %q", in.Type)
		}
		c, err := buildComponentV2(in, replace)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}

func buildComponentV2(in ComponentV2Input, replace replacer) (*Component, error) {
	switch in.Type {
	case "TEXT_DISPLAY":
		content := strings.TrimSpace(replace(in.Content))
		return &Component{Type: ComponentTextDisplay, Content: &content}, nil

	case "THUMBNAIL":
		url := ""
		if in.Media != nil {
			url = encodeURLWhitespace(replace(in.Media.URL))
		}
		c := &Component{
			Type:    ComponentThumbnail,
			Media:   &MediaInput{URL: url},
			Spoiler: in.Spoiler,
		}
		if in.Description != "" {
			c.Description = TruncateText(replace(in.Description), 1024)
		}
		return c, nil

	case "BUTTON":
		return buildButtonV2(in, replace), nil

	case "SECTION":
		children, err := buildChildren(in.Components, replace)
		if err != nil {
			return nil, err
		}
		c := &Component{Type: ComponentSection, Components: children}
		if in.Accessory != nil {
			if in.Accessory.Type != "THUMBNAIL" && in.Accessory.Type != "BUTTON" {
				return nil, fmt.Errorf("unsupported section accessory type %q", in.Accessory.Type)
			}
			acc, err := buildComponentV2(*in.Accessory, replace)
			if err != nil {
				return nil, err
			}
			c.Accessory = acc
		}
		return c, nil

	case "ACTION_ROW":
		children, err := buildChildren(in.Components, replace)
		if err != nil {
			return nil, err
		}
		return &Component{Type: ComponentActionRow, Components: children}, nil

	case "SEPARATOR":
		return &Component{Type: ComponentSeparator, Divider: in.Divider, Spacing: in.Spacing}, nil

	case "MEDIA_GALLERY":
		items := make([]MediaGalleryItem, 0, len(in.Items))
		for _, item := range in.Items {
			url := encodeURLWhitespace(strings.TrimSpace(replace(item.Media.URL)))
			if url == "" {
				continue
			}
			gi := MediaGalleryItem{Media: MediaInput{URL: url}, Spoiler: item.Spoiler}
			if item.Description != "" {
				gi.Description = TruncateText(replace(item.Description), 1024)
			}
			items = append(items, gi)
		}
		return &Component{Type: ComponentMediaGallery, Items: items}, nil

	case "CONTAINER":
		children, err := buildChildren(in.Components, replace)
		if err != nil {
			return nil, err
		}
		kept := children[:0]
		for _, child := range children {
			if child.Type == ComponentMediaGallery && len(child.Items) == 0 {
				continue
			}
			kept = append(kept, child)
		}
		return &Component{
			Type:        ComponentContainer,
			Components:  kept,
			AccentColor: in.AccentColor,
			Spoiler:     in.Spoiler,
		}, nil
	}

	return nil, fmt.Errorf("unknown component type %q", in.Type)
}

func buildChildren(inputs []ComponentV2Input, replace replacer) ([]Component, error) {
	out := make([]Component, 0, len(inputs))
	for _, in := range inputs {
		c, err := buildComponentV2(in, replace)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func buildButtonV2(in ComponentV2Input, replace replacer) *Component {
	label := replace(in.Label)
	if label == "" {
		label = in.Label
	}
	c := &Component{
		Type:     ComponentButton,
		Style:    in.Style,
		Label:    TruncateText(label, 80),
		Emoji:    in.Emoji,
		Disabled: in.Disabled,
	}
	if in.URL != "" {
		c.URL = encodeURLWhitespace(replace(in.URL))
	}
	if in.Style != ButtonStyleLink || c.URL == "" {
		c.CustomID = uuid.NewString()
	}
	return c
}
