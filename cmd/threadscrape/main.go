// Package main provides the entry point for the threadscrape CLI.
//
// threadscrape downloads every page of a forum thread, converts the posts
// to markdown and writes the whole thread to a single file.
//
// Usage:
//
//	threadscrape scrape -u <thread-url> -o <output-dir>
//	threadscrape history
//
// See --help for all available options.
package main

func main() {
	Execute()
}
