// Package forum turns the HTML of one thread page into markdown.
//
// A Template describes where the parts of a post live in a forum's markup
// (CSS selectors) and which image references are decoration. The built-in
// "woltlab" template matches WoltLab Burning Board 3 thread pages.
//
// Parser.ParsePage is pure: the same HTML always produces the same markdown.
//
// # Output
//
// Every post is rendered as
//
//	## {author} — {date} — [{count}]({link})
//
//	### {title}
//
//	{body}
//
// The title heading and its blank line are omitted when the post has no title.
package forum
