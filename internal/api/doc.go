// Package api implements the HTTP front end of the AM43 drive service.
//
// This package provides:
//   - The blind control routes consumed by home automation front ends:
//     /am43/{action}, /am43/{action}/device/{name} and
//     /am43/{action}/group/{name}
//   - An on-demand discovery scan at /am43/discovery
//   - Service endpoints under /api/v1: health, devices and the dispatch
//     audit log
//   - Middleware stack (request ID, logging, recovery, CORS, rate limit)
//
// # Method convention
//
// Every action is requested with GET except getStatus, which must use PUT.
// A request with the wrong method is rejected with 405 before any drive is
// contacted, as are unknown actions (400) and unknown groups or devices
// (404).
//
// # Response body
//
// Control routes answer 200 with one JSON object per targeted drive, keyed
// by display name, plus a top-level "status" of "OK" or "ERROR". Drive
// failures never change the HTTP status.
package api
