// Package model defines the core data structures used throughout threadscrape.
//
// This package contains the following main types:
//   - Page: One fetched page of a thread with its raw markup and rendering
//   - Post: A single forum post extracted from a page
//   - ScrapeReport: The outcome of scraping one thread
//
// The error kinds shared by the fetch, parse and scrape packages also live
// here so that callers can classify failures with errors.Is without
// importing the component that produced them.
package model
