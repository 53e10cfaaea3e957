// Package main wires together the video ingest service: the submission
// API, the queue consumers, and the catalog store.
package main
