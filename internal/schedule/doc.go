// Package schedule runs configured blind actions on a timetable.
//
// Each job pairs a schedule with a dispatch request. Schedules are 5-field
// cron expressions ("30 7 * * 1-5"), descriptors ("@daily") or Go
// durations ("45m") for fixed intervals. Jobs run through the same
// dispatcher as HTTP requests, so they queue behind any dispatch already
// using the radio. Invalid schedules are rejected when the job is added,
// which makes a bad config fail at startup.
package schedule
