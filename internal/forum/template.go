package forum

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/andybalholm/cascadia"
)

// ErrInvalidTemplate is returned when a template is missing a required
// selector or contains a selector that cannot be compiled.
var ErrInvalidTemplate = errors.New("invalid forum template")

// Field names used in parse errors.
const (
	FieldAuthor = "author"
	FieldAnchor = "anchor"
	FieldDate   = "date"
	FieldTitle  = "title"
	FieldBody   = "body"
)

// Template holds the selectors and cleanup rules for one forum platform.
// Field selectors are evaluated inside each post element.
type Template struct {
	// Name identifies the template. It is filled from the map key when
	// loaded from a config file.
	Name string `yaml:"-"`

	// Post selects the post container elements in document order.
	Post string `yaml:"post"`

	// Author selects the element whose text is the author name.
	Author string `yaml:"author"`

	// Anchor selects the link whose text is the post number and whose
	// href is the permalink.
	Anchor string `yaml:"anchor"`

	// Date selects the element whose text is the post timestamp.
	Date string `yaml:"date"`

	// Title selects the post title. A post without it has no title.
	Title string `yaml:"title,omitempty"`

	// Body selects the element whose inner HTML is the post content.
	Body string `yaml:"body"`

	// Smilies are image path prefixes whose references are replaced by
	// their alt text.
	Smilies []string `yaml:"smilies,omitempty"`

	// StripImages are image paths whose references are removed.
	StripImages []string `yaml:"strip_images,omitempty"`
}

// field is one per-post locator.
type field struct {
	name     string
	selector string
	required bool
}

// fields returns the per-post locators in extraction order.
func (t Template) fields() []field {
	return []field{
		{name: FieldAuthor, selector: t.Author, required: true},
		{name: FieldAnchor, selector: t.Anchor, required: true},
		{name: FieldDate, selector: t.Date, required: true},
		{name: FieldTitle, selector: t.Title, required: false},
		{name: FieldBody, selector: t.Body, required: true},
	}
}

// Validate checks that every required selector is present and that all
// selectors compile.
func (t Template) Validate() error {
	if t.Post == "" {
		return fmt.Errorf("%w: %q has no post selector", ErrInvalidTemplate, t.Name)
	}
	if _, err := cascadia.Compile(t.Post); err != nil {
		return fmt.Errorf("%w: %q post selector: %w", ErrInvalidTemplate, t.Name, err)
	}

	for _, f := range t.fields() {
		if f.selector == "" {
			if f.required {
				return fmt.Errorf("%w: %q has no %s selector", ErrInvalidTemplate, t.Name, f.name)
			}
			continue
		}
		if _, err := cascadia.Compile(f.selector); err != nil {
			return fmt.Errorf("%w: %q %s selector: %w", ErrInvalidTemplate, t.Name, f.name, err)
		}
	}

	return nil
}

// WoltLab is the template for WoltLab Burning Board 3 thread pages.
var WoltLab = Template{
	Name:   "woltlab",
	Post:   "body#tplThread > div#mainContainer > div#main > div#splitter > div#secondSplit > div.message",
	Author: "div.messageSidebar div.messageAuthor p.userName",
	Anchor: "div.messageContent div.messageHeader > p.messageCount > a.messageNumber",
	Date:   "div.messageContent div.messageHeader > div.containerContent > p",
	Title:  "div.messageContent h3.messageTitle",
	Body:   "div.messageContent div.messageBody",
	Smilies: []string{
		"wcf/images/smilies/",
	},
	StripImages: []string{
		"wcf/icon/quoteS.png",
		"wcf/icon/warningS.png",
	},
}

var builtins = map[string]Template{
	WoltLab.Name: WoltLab,
}

// BuiltinTemplate returns the built-in template with the given name.
func BuiltinTemplate(name string) (Template, bool) {
	t, ok := builtins[name]
	if !ok {
		return Template{}, false
	}
	t.Smilies = slices.Clone(t.Smilies)
	t.StripImages = slices.Clone(t.StripImages)
	return t, true
}

// BuiltinNames returns the names of the built-in templates, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
