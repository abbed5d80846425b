// Package audit keeps the dispatch history of the AM43 service.
//
// Recorder observes the dispatcher and writes one dispatch_log row per drive
// per dispatch: the action, the target, the outcome and, for status
// queries, the battery, position and light values collected. The history is
// served at GET /api/v1/audit.
package audit
