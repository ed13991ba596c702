package formatter

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/lysyi3m/feed-relay/app/feed"
)

type StepType string

const (
	StepRegex      StepType = "REGEX"
	StepURLEncode  StepType = "URL_ENCODE"
	StepDateFormat StepType = "DATE_FORMAT"
	StepUppercase  StepType = "UPPERCASE"
	StepLowercase  StepType = "LOWERCASE"
)

// Step transforms the previous output of a custom placeholder.
type Step interface {
	stepType() StepType
}

type RegexStep struct {
	RegexSearch       string
	RegexSearchFlags  string
	ReplacementString string
}

type URLEncodeStep struct{}

type DateFormatStep struct {
	Format   string
	Timezone string
	Locale   string
}

type UppercaseStep struct{}

type LowercaseStep struct{}

func (RegexStep) stepType() StepType      { return StepRegex }
func (URLEncodeStep) stepType() StepType  { return StepURLEncode }
func (DateFormatStep) stepType() StepType { return StepDateFormat }
func (UppercaseStep) stepType() StepType  { return StepUppercase }
func (LowercaseStep) stepType() StepType  { return StepLowercase }

type CustomPlaceholder struct {
	ID            string
	ReferenceName string
	SourceField   string
	Steps         []Step
}

type rawStep struct {
	Type              StepType `json:"type" yaml:"type"`
	RegexSearch       string   `json:"regexSearch" yaml:"regex_search"`
	RegexSearchFlags  string   `json:"regexSearchFlags" yaml:"regex_search_flags"`
	ReplacementString string   `json:"replacementString" yaml:"replacement_string"`
	Format            string   `json:"format" yaml:"format"`
	Timezone          string   `json:"timezone" yaml:"timezone"`
	Locale            string   `json:"locale" yaml:"locale"`
}

type rawCustomPlaceholder struct {
	ID            string    `json:"id" yaml:"id"`
	ReferenceName string    `json:"referenceName" yaml:"reference_name"`
	SourceField   string    `json:"sourcePlaceholder" yaml:"source"`
	Steps         []rawStep `json:"steps" yaml:"steps"`
}

func (s rawStep) toStep() (Step, error) {
	switch s.Type {
	case StepRegex, "":
		return RegexStep{RegexSearch: s.RegexSearch, RegexSearchFlags: s.RegexSearchFlags, ReplacementString: s.ReplacementString}, nil
	case StepURLEncode:
		return URLEncodeStep{}, nil
	case StepDateFormat:
		return DateFormatStep{Format: s.Format, Timezone: s.Timezone, Locale: s.Locale}, nil
	case StepUppercase:
		return UppercaseStep{}, nil
	case StepLowercase:
		return LowercaseStep{}, nil
	}
	return nil, fmt.Errorf("unknown custom placeholder step type %q", s.Type)
}

func (r rawCustomPlaceholder) toPlaceholder() (CustomPlaceholder, error) {
	cp := CustomPlaceholder{ID: r.ID, ReferenceName: r.ReferenceName, SourceField: r.SourceField}
	for _, rs := range r.Steps {
		step, err := rs.toStep()
		if err != nil {
			return CustomPlaceholder{}, err
		}
		cp.Steps = append(cp.Steps, step)
	}
	return cp, nil
}

func (c *CustomPlaceholder) UnmarshalJSON(data []byte) error {
	var raw rawCustomPlaceholder
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cp, err := raw.toPlaceholder()
	if err != nil {
		return err
	}
	*c = cp
	return nil
}

func (c *CustomPlaceholder) UnmarshalYAML(unmarshal func(any) error) error {
	var raw rawCustomPlaceholder
	if err := unmarshal(&raw); err != nil {
		return err
	}
	cp, err := raw.toPlaceholder()
	if err != nil {
		return err
	}
	*c = cp
	return nil
}

// CustomPlaceholderRegexError is returned when a regex step cannot be evaluated.
type CustomPlaceholderRegexError struct {
	ReferenceName string
	RegexErrors   []string
}

func (e *CustomPlaceholderRegexError) Error() string {
	return fmt.Sprintf("custom placeholder %q regex evaluation failed: %s", e.ReferenceName, strings.Join(e.RegexErrors, "; "))
}

func IsCustomPlaceholderRegexError(err error) bool {
	var target *CustomPlaceholderRegexError
	return errors.As(err, &target)
}

// ValidateCustomPlaceholders compiles every regex step and reports all failures
// of the first placeholder that has any.
func ValidateCustomPlaceholders(placeholders []CustomPlaceholder) error {
	for _, cp := range placeholders {
		var failures []string
		for _, step := range cp.Steps {
			rs, ok := step.(RegexStep)
			if !ok || rs.RegexSearch == "" {
				continue
			}
			if _, _, err := compileRegexStep(rs); err != nil {
				failures = append(failures, err.Error())
			}
		}
		if len(failures) > 0 {
			return &CustomPlaceholderRegexError{ReferenceName: cp.ReferenceName, RegexErrors: failures}
		}
	}
	return nil
}

// ProcessCustomPlaceholders computes every custom placeholder of values, storing the
// result under custom::<referenceName>. The returned previews follow placeholder order,
// each holding the source value followed by the output of each step. Placeholders with
// an empty source have no preview.
func ProcessCustomPlaceholders(values map[string]string, placeholders []CustomPlaceholder) (map[string]string, [][]string, error) {
	if err := ValidateCustomPlaceholders(placeholders); err != nil {
		return nil, nil, err
	}

	previews := make([][]string, 0, len(placeholders))

	for _, cp := range placeholders {
		key := customPlaceholderPrefix + cp.ReferenceName
		source := values[cp.SourceField]
		if source == "" {
			values[key] = ""
			continue
		}

		preview := []string{source}
		output := source

		for _, step := range cp.Steps {
			next, err := applyStep(output, step)
			if err != nil {
				return nil, nil, &CustomPlaceholderRegexError{ReferenceName: cp.ReferenceName, RegexErrors: []string{err.Error()}}
			}
			output = next
			preview = append(preview, output)
		}

		values[key] = output
		previews = append(previews, preview)
	}

	return values, previews, nil
}

func applyStep(input string, step Step) (string, error) {
	switch s := step.(type) {
	case RegexStep:
		return applyRegex(input, s)
	case URLEncodeStep:
		return encodeURIComponent(input), nil
	case DateFormatStep:
		return applyDateFormat(input, s), nil
	case UppercaseStep:
		return cases.Upper(language.Und).String(input), nil
	case LowercaseStep:
		return cases.Lower(language.Und).String(input), nil
	}
	return input, nil
}

func applyRegex(input string, s RegexStep) (string, error) {
	if s.RegexSearch == "" {
		return input, nil
	}

	re, global, err := compileRegexStep(s)
	if err != nil {
		return "", err
	}

	template := toGoTemplate(s.ReplacementString)

	if global {
		return strings.TrimSpace(re.ReplaceAllString(input, template)), nil
	}

	loc := re.FindStringSubmatchIndex(input)
	if loc == nil {
		return strings.TrimSpace(input), nil
	}
	var out []byte
	out = append(out, input[:loc[0]]...)
	out = re.ExpandString(out, template, input, loc)
	out = append(out, input[loc[1]:]...)
	return strings.TrimSpace(string(out)), nil
}

// compileRegexStep translates the JavaScript-style flags of a step into inline
// RE2 flags. "g" only reports whether every match is replaced.
func compileRegexStep(s RegexStep) (*regexp.Regexp, bool, error) {
	flags := s.RegexSearchFlags
	if flags == "" {
		flags = "gmi"
	}

	var prefix strings.Builder
	global := false
	for _, f := range flags {
		switch f {
		case 'g':
			global = true
		case 'i', 'm', 's':
			prefix.WriteRune(f)
		}
	}

	pattern := s.RegexSearch
	if prefix.Len() > 0 {
		pattern = "(?" + prefix.String() + ")" + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false, err
	}
	return re, global, nil
}

// toGoTemplate rewrites $1, $& and $<name> references into ${...} form.
func toGoTemplate(replacement string) string {
	var b strings.Builder
	for i := 0; i < len(replacement); i++ {
		c := replacement[i]
		if c != '$' || i+1 >= len(replacement) {
			b.WriteByte(c)
			continue
		}

		next := replacement[i+1]
		switch {
		case next == '$':
			b.WriteString("$$")
			i++
		case next == '&':
			b.WriteString("${0}")
			i++
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(replacement) && replacement[j] >= '0' && replacement[j] <= '9' {
				j++
			}
			b.WriteString("${" + replacement[i+1:j] + "}")
			i = j - 1
		case next == '<':
			end := strings.IndexByte(replacement[i:], '>')
			if end < 0 {
				b.WriteString("$$")
				continue
			}
			b.WriteString("${" + replacement[i+2:i+end] + "}")
			i += end
		default:
			b.WriteString("$$")
		}
	}
	return b.String()
}

func applyDateFormat(input string, s DateFormatStep) string {
	t, err := feed.ParseDate(input)
	if err != nil {
		return ""
	}
	if s.Format == "" && s.Timezone == "" {
		return input
	}
	out, err := feed.FormatDate(t, s.Format, s.Timezone, s.Locale)
	if err != nil {
		return ""
	}
	return out
}

func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreservedURIChar(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&15])
	}
	return b.String()
}

func isUnreservedURIChar(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
