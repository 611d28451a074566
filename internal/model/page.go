package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// Page represents one fetched page of a forum thread.
// Pages are numbered from 1; page N is fetched from "index{N}.html".
type Page struct {
	// Number is the 1-based page number.
	Number int `json:"number"`

	// URL is the page URL the markup was requested from.
	URL string `json:"url"`

	// HTML is the raw markup returned by the fetcher.
	HTML string `json:"-"`

	// Markdown is the rendered markdown of all posts on the page.
	Markdown string `json:"-"`

	// Hash is the SHA-256 of Markdown, used by the run history.
	Hash string `json:"hash"`
}

// Post is a single post extracted from a thread page.
// Date is kept as the text shown by the forum; it is never parsed.
type Post struct {
	// Author is the display name of the poster.
	Author string `json:"author"`

	// Count is the sequence anchor text (e.g. "#12").
	Count string `json:"count"`

	// Link is the permalink of the sequence anchor.
	Link string `json:"link"`

	// Date is the timestamp text as displayed by the forum.
	Date string `json:"date"`

	// Title is the optional post title. Empty when the post has none.
	Title string `json:"title,omitempty"`

	// Body is the inner HTML of the post body.
	Body string `json:"body"`
}

// ComputeHash calculates and sets the SHA-256 hash of the page's markdown.
func (p *Page) ComputeHash() {
	if p.Markdown == "" {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256([]byte(p.Markdown))
	p.Hash = hex.EncodeToString(hash[:])
}

// SameContent reports whether two pages rendered to identical markdown.
// The thread scraper uses this as its end-of-thread signal: the forum
// serves the last valid page again for any out-of-range page number.
func (p *Page) SameContent(other *Page) bool {
	if p == nil || other == nil {
		return false
	}
	return p.Markdown == other.Markdown
}
