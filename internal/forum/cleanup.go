package forum

import (
	"regexp"
	"strings"
)

// imageTitle matches the optional title part of a markdown image reference.
const imageTitle = `(?:\s+"[^"]*")?`

// srcPrefix lets an asset path match with or without a leading host or
// directory, e.g. "https://forum.example/wcf/icon/quoteS.png".
const srcPrefix = `(?:[^\s()]*/)?`

type rewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

// Cleaner removes forum decoration from rendered markdown.
type Cleaner struct {
	rewrites []rewrite
	smilies  []*regexp.Regexp
}

// NewCleaner builds the cleanup rules of a template.
//
//	![:(](wcf/images/smilies/sad.png)       -> :(
//	![](wcf/icon/quoteS.png)                -> (removed)
//	![Internal text](wcf/icon/warningS.png) -> (removed)
func NewCleaner(t Template) *Cleaner {
	c := &Cleaner{}

	for _, prefix := range t.Smilies {
		c.smilies = append(c.smilies, regexp.MustCompile(
			`^` + srcPrefix + regexp.QuoteMeta(prefix) + `[^/\s()]+$`,
		))
		c.rewrites = append(c.rewrites, rewrite{
			pattern: regexp.MustCompile(
				`!\[([^\]]+)\]\(` + srcPrefix + regexp.QuoteMeta(prefix) + `[^/\s()]+` + imageTitle + `\)`,
			),
			replacement: "$1",
		})
	}

	for _, src := range t.StripImages {
		c.rewrites = append(c.rewrites, rewrite{
			pattern:     regexp.MustCompile(`!\[[^\]]*\]\(` + srcPrefix + regexp.QuoteMeta(src) + imageTitle + `\)`),
			replacement: "",
		})
	}

	return c
}

// IsSmiley reports whether an image source is one of the template's smilies.
func (c *Cleaner) IsSmiley(src string) bool {
	for _, re := range c.smilies {
		if re.MatchString(src) {
			return true
		}
	}
	return false
}

// Clean applies the rules in order and trims the result.
func (c *Cleaner) Clean(markdown string) string {
	for _, rw := range c.rewrites {
		markdown = rw.pattern.ReplaceAllString(markdown, rw.replacement)
	}
	return strings.TrimSpace(markdown)
}
