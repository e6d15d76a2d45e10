// Package metrics exposes Prometheus collectors for the mailbox device.
//
// Counters are labeled by outcome ("ok", "malformed", "capacity_exceeded",
// ...) and queue gauges are refreshed from the store on every scrape. Each
// Metrics value owns a private registry so several devices can coexist in one
// process, for example in tests.
package metrics
