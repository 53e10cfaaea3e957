// Package api exposes the HTTP interface for the ingest service: the
// submission endpoint that feeds the pipeline and the catalog read
// endpoints backed by the video store.
package api
