package forum

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/nao1215/threadscrape/internal/model"
)

// testPost describes one post container for threadPage.
type testPost struct {
	author string
	count  string
	link   string
	date   string
	title  string
	body   string

	omitAuthor bool
	omitAnchor bool
	omitDate   bool
	omitTitle  bool
	omitBody   bool
}

// threadPage builds a WoltLab thread page containing the given posts.
func threadPage(posts ...testPost) string {
	var sb strings.Builder
	sb.WriteString(`<html><head><title>Thread</title></head><body id="tplThread">`)
	sb.WriteString(`<div id="mainContainer"><div id="main"><div id="splitter"><div id="secondSplit">`)

	for _, p := range posts {
		sb.WriteString(`<div class="message">`)
		sb.WriteString(`<div class="messageSidebar"><div class="messageAuthor">`)
		if !p.omitAuthor {
			fmt.Fprintf(&sb, `<p class="userName"> %s </p>`, p.author)
		}
		sb.WriteString(`</div></div>`)
		sb.WriteString(`<div class="messageContent"><div class="messageHeader">`)
		if !p.omitAnchor {
			fmt.Fprintf(&sb, `<p class="messageCount"><a class="messageNumber" href="%s">%s</a></p>`, p.link, p.count)
		}
		if !p.omitDate {
			fmt.Fprintf(&sb, `<div class="containerContent"><p>%s</p></div>`, p.date)
		}
		sb.WriteString(`</div>`)
		if !p.omitTitle {
			fmt.Fprintf(&sb, `<h3 class="messageTitle">%s</h3>`, p.title)
		}
		if !p.omitBody {
			fmt.Fprintf(&sb, `<div class="messageBody">%s</div>`, p.body)
		}
		sb.WriteString(`</div></div>`)
	}

	sb.WriteString(`</div></div></div></div></body></html>`)
	return sb.String()
}

func newWoltLabParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(WoltLab)
	if err != nil {
		t.Fatalf("NewParser() error = %v", err)
	}
	return p
}

func TestParsePage(t *testing.T) {
	t.Parallel()

	t.Run("single post renders heading, title and body", func(t *testing.T) {
		t.Parallel()

		p := newWoltLabParser(t)
		page := threadPage(testPost{
			author: "alice",
			count:  "1",
			link:   "x#post1",
			date:   "Jan 1",
			title:  "Hi",
			body:   "<p>Hello</p>",
		})

		got, err := p.ParsePage(page)
		if err != nil {
			t.Fatalf("ParsePage() error = %v", err)
		}

		want := "## alice — Jan 1 — [1](x#post1)\n\n### Hi\n\nHello\n\n"
		if got != want {
			t.Errorf("ParsePage() = %q, want %q", got, want)
		}
	})

	t.Run("empty title omits the title heading", func(t *testing.T) {
		t.Parallel()

		p := newWoltLabParser(t)
		page := threadPage(testPost{
			author: "bob",
			count:  "2",
			link:   "x#post2",
			date:   "Jan 2",
			title:  "",
			body:   "<p>Reply</p>",
		})

		got, err := p.ParsePage(page)
		if err != nil {
			t.Fatalf("ParsePage() error = %v", err)
		}

		want := "## bob — Jan 2 — [2](x#post2)\n\nReply\n\n"
		if got != want {
			t.Errorf("ParsePage() = %q, want %q", got, want)
		}
	})

	t.Run("missing title element is not an error", func(t *testing.T) {
		t.Parallel()

		p := newWoltLabParser(t)
		page := threadPage(testPost{
			author:    "carol",
			count:     "3",
			link:      "x#post3",
			date:      "Jan 3",
			omitTitle: true,
			body:      "<p>No title</p>",
		})

		got, err := p.ParsePage(page)
		if err != nil {
			t.Fatalf("ParsePage() error = %v", err)
		}
		if strings.Contains(got, "###") {
			t.Errorf("ParsePage() = %q, want no title heading", got)
		}
	})

	t.Run("posts are concatenated in document order", func(t *testing.T) {
		t.Parallel()

		p := newWoltLabParser(t)
		page := threadPage(
			testPost{author: "alice", count: "1", link: "x#1", date: "Jan 1", body: "<p>first</p>"},
			testPost{author: "bob", count: "2", link: "x#2", date: "Jan 2", body: "<p>second</p>"},
		)

		got, err := p.ParsePage(page)
		if err != nil {
			t.Fatalf("ParsePage() error = %v", err)
		}

		want := "## alice — Jan 1 — [1](x#1)\n\nfirst\n\n## bob — Jan 2 — [2](x#2)\n\nsecond\n\n"
		if got != want {
			t.Errorf("ParsePage() = %q, want %q", got, want)
		}
	})

	t.Run("page without posts is ErrNoPosts", func(t *testing.T) {
		t.Parallel()

		p := newWoltLabParser(t)
		_, err := p.ParsePage(threadPage())
		if !errors.Is(err, model.ErrNoPosts) {
			t.Errorf("ParsePage() error = %v, want ErrNoPosts", err)
		}
		if !errors.Is(err, model.ErrParse) {
			t.Errorf("ParsePage() error = %v, want ErrParse", err)
		}
	})

	t.Run("unrelated markup is ErrNoPosts", func(t *testing.T) {
		t.Parallel()

		p := newWoltLabParser(t)
		_, err := p.ParsePage(`<html><body><div class="message">not a thread</div></body></html>`)
		if !errors.Is(err, model.ErrNoPosts) {
			t.Errorf("ParsePage() error = %v, want ErrNoPosts", err)
		}
	})

	t.Run("same input gives same output", func(t *testing.T) {
		t.Parallel()

		p := newWoltLabParser(t)
		page := threadPage(testPost{
			author: "alice", count: "1", link: "x#1", date: "Jan 1", title: "T",
			body: `<p>text <img src="wcf/images/smilies/smile.png" alt=":)"></p>`,
		})

		first, err := p.ParsePage(page)
		if err != nil {
			t.Fatalf("ParsePage() error = %v", err)
		}
		second, err := p.ParsePage(page)
		if err != nil {
			t.Fatalf("ParsePage() error = %v", err)
		}
		if first != second {
			t.Errorf("ParsePage() not deterministic: %q != %q", first, second)
		}
	})
}

func TestParsePageMissingField(t *testing.T) {
	t.Parallel()

	base := testPost{author: "alice", count: "1", link: "x#1", date: "Jan 1", title: "T", body: "<p>b</p>"}

	tests := []struct {
		name   string
		mutate func(*testPost)
		field  string
	}{
		{name: "author", mutate: func(p *testPost) { p.omitAuthor = true }, field: FieldAuthor},
		{name: "anchor", mutate: func(p *testPost) { p.omitAnchor = true }, field: FieldAnchor},
		{name: "date", mutate: func(p *testPost) { p.omitDate = true }, field: FieldDate},
		{name: "body", mutate: func(p *testPost) { p.omitBody = true }, field: FieldBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			broken := base
			tt.mutate(&broken)
			p := newWoltLabParser(t)

			_, err := p.ParsePage(threadPage(base, broken))
			if !errors.Is(err, model.ErrParse) {
				t.Fatalf("ParsePage() error = %v, want ErrParse", err)
			}

			var missing *model.MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("ParsePage() error = %T, want *MissingFieldError", err)
			}
			if missing.Field != tt.field {
				t.Errorf("Field = %q, want %q", missing.Field, tt.field)
			}
			if missing.Post != 2 {
				t.Errorf("Post = %d, want 2", missing.Post)
			}
		})
	}
}

func TestPosts(t *testing.T) {
	t.Parallel()

	p := newWoltLabParser(t)
	posts, err := p.Posts(threadPage(testPost{
		author: "  dave  ",
		count:  "#12",
		link:   "index.php?page=Thread&postID=12#post12",
		date:   "Monday, 1. January 2024, 10:00",
		title:  "Re: Engine",
		body:   "<p>body</p>",
	}))
	if err != nil {
		t.Fatalf("Posts() error = %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("Posts() returned %d posts, want 1", len(posts))
	}

	got := posts[0]
	if got.Author != "dave" {
		t.Errorf("Author = %q, want %q", got.Author, "dave")
	}
	if got.Count != "#12" {
		t.Errorf("Count = %q, want %q", got.Count, "#12")
	}
	if got.Link != "index.php?page=Thread&postID=12#post12" {
		t.Errorf("Link = %q", got.Link)
	}
	if got.Date != "Monday, 1. January 2024, 10:00" {
		t.Errorf("Date = %q", got.Date)
	}
	if got.Title != "Re: Engine" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.Body != "<p>body</p>" {
		t.Errorf("Body = %q, want %q", got.Body, "<p>body</p>")
	}
}

func TestRenderBodyCleanup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		body     string
		contains []string
		excludes []string
	}{
		{
			name:     "smiley becomes alt text",
			body:     `<p>sad <img src="wcf/images/smilies/sad.png" alt=":("></p>`,
			contains: []string{"sad :("},
			excludes: []string{"![", "smilies"},
		},
		{
			name:     "smiley with title attribute becomes alt text",
			body:     `<p>ok <img src="wcf/images/smilies/smile.png" alt=":)" title="smile"></p>`,
			contains: []string{"ok :)"},
			excludes: []string{"![", "smilies"},
		},
		{
			name:     "adjacent smilies keep the space between them",
			body:     `<p>hi <img src="wcf/images/smilies/sad.png" alt=":("> <img src="wcf/images/smilies/smile.png" alt=":)"> there</p>`,
			contains: []string{"hi :( :) there"},
			excludes: []string{"![", "smilies", smileyToken},
		},
		{
			name:     "smiley alt text is not escaped",
			body:     `<p>kiss <img src="https://forum.example/wcf/images/smilies/kiss.png" alt=":*"></p>`,
			contains: []string{"kiss :*"},
			excludes: []string{`\*`, "!["},
		},
		{
			name:     "quote icon is removed",
			body:     `<p><img src="wcf/icon/quoteS.png" alt=""> quoted</p>`,
			contains: []string{"quoted"},
			excludes: []string{"quoteS.png", "!["},
		},
		{
			name:     "warning icon with alt text is removed",
			body:     `<p><img src="wcf/icon/warningS.png" alt="Internal text"> Internal text</p>`,
			contains: []string{"Internal text"},
			excludes: []string{"warningS.png", "!["},
		},
		{
			name:     "other images are kept",
			body:     `<p><img src="attachments/photo.png" alt="photo"></p>`,
			contains: []string{"![photo](attachments/photo.png)"},
		},
		{
			name:     "bullet list uses dash marker",
			body:     `<ul><li>one</li><li>two</li></ul>`,
			contains: []string{"- one", "- two"},
		},
		{
			name:     "code block is fenced",
			body:     `<pre><code>x := 1</code></pre>`,
			contains: []string{"```", "x := 1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newWoltLabParser(t)
			got, err := p.RenderBody(tt.body)
			if err != nil {
				t.Fatalf("RenderBody() error = %v", err)
			}

			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("RenderBody() = %q, want it to contain %q", got, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("RenderBody() = %q, want it not to contain %q", got, s)
				}
			}
			if got != strings.TrimSpace(got) {
				t.Errorf("RenderBody() = %q, want trimmed output", got)
			}
		})
	}
}
