// Package jobs runs the periodic birthday jobs: daily detection, daily
// reminder fan-out and weekly media cleanup.
//
// A Runner fires each registered Job at most once per period. The period
// key (a date for daily jobs, an ISO week for weekly ones) is persisted as a
// watermark after the handler finishes, so a restart inside the same period
// does not run the job again. A lease named after the job keeps two
// processes from running it concurrently; a trigger that finds the job
// already running is dropped, not queued.
package jobs
