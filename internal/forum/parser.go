package forum

import (
	"fmt"
	"strings"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/nao1215/markdown"

	"github.com/nao1215/threadscrape/internal/model"
)

// converterOptions are the markdown rendering rules for post bodies.
var converterOptions = htmltomd.Options{
	HeadingStyle:     "atx",
	HorizontalRule:   "---",
	BulletListMarker: "-",
	CodeBlockStyle:   "fenced",
}

type compiledField struct {
	field
	matcher cascadia.Selector
}

// Parser extracts posts from thread pages of one forum template.
// A Parser holds no mutable state and may be shared between goroutines.
type Parser struct {
	template Template
	post     cascadia.Selector
	fields   []compiledField
	cleaner  *Cleaner
}

// NewParser validates the template and compiles its selectors.
func NewParser(t Template) (*Parser, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	p := &Parser{
		template: t,
		post:     cascadia.MustCompile(t.Post),
		cleaner:  NewCleaner(t),
	}
	for _, f := range t.fields() {
		cf := compiledField{field: f}
		if f.selector != "" {
			cf.matcher = cascadia.MustCompile(f.selector)
		}
		p.fields = append(p.fields, cf)
	}

	return p, nil
}

// Template returns the template the parser was built from.
func (p *Parser) Template() Template {
	return p.template
}

// Posts extracts every post on the page in document order.
// It fails with model.ErrNoPosts when no post container is found and with
// a *model.MissingFieldError when a required field is absent.
func (p *Parser) Posts(pageHTML string) ([]model.Post, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrParse, err)
	}

	containers := doc.FindMatcher(p.post)
	if containers.Length() == 0 {
		return nil, model.ErrNoPosts
	}

	posts := make([]model.Post, 0, containers.Length())
	for i := range containers.Length() {
		post, err := p.extract(containers.Eq(i), i+1)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	return posts, nil
}

// extract reads the fields of one post container.
func (p *Parser) extract(container *goquery.Selection, index int) (model.Post, error) {
	var post model.Post

	for _, f := range p.fields {
		if f.matcher == nil {
			continue
		}

		sel := container.FindMatcher(f.matcher).First()
		if sel.Length() == 0 {
			if f.required {
				return model.Post{}, &model.MissingFieldError{Field: f.name, Post: index}
			}
			continue
		}

		switch f.name {
		case FieldAuthor:
			post.Author = strings.TrimSpace(sel.Text())
		case FieldAnchor:
			post.Count = strings.TrimSpace(sel.Text())
			post.Link, _ = sel.Attr("href")
		case FieldDate:
			post.Date = strings.TrimSpace(sel.Text())
		case FieldTitle:
			post.Title = strings.TrimSpace(sel.Text())
		case FieldBody:
			body, err := sel.Html()
			if err != nil {
				return model.Post{}, fmt.Errorf("%w: post %d body: %w", model.ErrParse, index, err)
			}
			post.Body = body
		}
	}

	return post, nil
}

// smileyToken marks where a smiley stood while the body is converted.
// It is plain alphanumeric text, so the converter neither escapes it nor
// collapses the whitespace around it.
const smileyToken = "THREADSCRAPESMILEY"

// RenderBody converts a post body to markdown and removes forum decoration.
func (p *Parser) RenderBody(bodyHTML string) (string, error) {
	bodyHTML, smilies, err := p.inlineSmilies(bodyHTML)
	if err != nil {
		return "", err
	}

	opts := converterOptions
	converter := htmltomd.NewConverter("", true, &opts)

	rendered, err := converter.ConvertString(bodyHTML)
	if err != nil {
		return "", fmt.Errorf("%w: render body: %w", model.ErrParse, err)
	}
	if smilies != nil {
		rendered = smilies.Replace(rendered)
	}

	return p.cleaner.Clean(rendered), nil
}

// inlineSmilies swaps smiley images for placeholder text before conversion
// and returns the replacer that restores their alt text. Adjacent images
// would otherwise lose the whitespace between them.
func (p *Parser) inlineSmilies(bodyHTML string) (string, *strings.Replacer, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyHTML))
	if err != nil {
		return "", nil, fmt.Errorf("%w: render body: %w", model.ErrParse, err)
	}

	var pairs []string
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		alt := strings.TrimSpace(img.AttrOr("alt", ""))
		if alt == "" || !p.cleaner.IsSmiley(img.AttrOr("src", "")) {
			return
		}
		token := fmt.Sprintf("%s%dX", smileyToken, len(pairs)/2)
		pairs = append(pairs, token, alt)
		img.ReplaceWithHtml(token)
	})
	if len(pairs) == 0 {
		return bodyHTML, nil, nil
	}

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", nil, fmt.Errorf("%w: render body: %w", model.ErrParse, err)
	}
	return out, strings.NewReplacer(pairs...), nil
}

// ParsePage renders every post on the page to markdown.
// Each post ends with a blank line, so pages can be concatenated directly.
func (p *Parser) ParsePage(pageHTML string) (string, error) {
	posts, err := p.Posts(pageHTML)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	md := markdown.NewMarkdown(&sb)

	for _, post := range posts {
		body, err := p.RenderBody(post.Body)
		if err != nil {
			return "", err
		}

		md.H2(fmt.Sprintf("%s — %s — %s", post.Author, post.Date, markdown.Link(post.Count, post.Link)))
		md.PlainText("")
		if post.Title != "" {
			md.H3(post.Title)
			md.PlainText("")
		}
		md.PlainText(body)
		md.PlainText("")
	}

	// String joins lines with a single line feed; the trailing one closes
	// the last post's blank line.
	return md.String() + "\n", nil
}
