// Package crawler implements the breadth-first crawl engine. Work items pair a
// Request with the Parser that interprets its Response; parsers emit either
// finished items or follow-up work, which the engine appends to the back of
// its FIFO queue. Transient transport failures are retried with exponential
// backoff, everything else drops the item without aborting the run.
package crawler
