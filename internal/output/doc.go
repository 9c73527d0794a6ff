// Package output serializes scrape results as CSV, JSON lines or a terminal
// table. File destinations are opened for append so an interrupted run can be
// resumed into the same file.
package output
