// Package scrape turns VAT numbers into crawl work. A Service knows one
// registry's wire protocol; the Scraper picks the unary or batch strategy and
// feeds the resulting seeds to the crawl engine. Batch jobs run as
// submit, poll and fetch hops chained through engine follow-ups.
package scrape
