// Package api exposes the HTTP interface for the email discovery service:
// health and metrics probes, crawl run control, KPI recomputation, store
// tailing, and on-demand address verification.
package api
