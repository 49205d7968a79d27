// Package web serves a browser view of watched processes: a process list,
// a per-process page with the latest graph image, a JSON status endpoint and
// Prometheus metrics.
//
// At most one process is watched at a time. Opening another process's page
// cancels the previous watch.
package web
