// Package database stores the scrape history in SQLite.
//
// Every run, written or failed, is saved with the pages that went into its
// output and the SHA-256 of each page's markdown. The history answers
// "when was this thread last scraped" and "did it change since then"
// without reading the output files.
//
// The database is a single file (history.db) in the XDG data directory,
// opened through modernc.org/sqlite so no cgo toolchain is needed. WAL mode
// lets a history listing read while a batch is writing.
package database
