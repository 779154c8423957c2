// Package notification turns scheduled wishes into sent or failed ones.
//
// Enqueue records a durable dispatch job. DispatchDue claims due jobs,
// re-reads each wish and only calls the Notifier while the wish is still
// scheduled, so duplicate or late triggers are no-ops. Notifier calls run
// under a bounded timeout and are retried with exponential backoff and full
// jitter; a permanent error or an exhausted budget marks the wish failed.
//
// The Scheduler can also run its own polling loop with Start and Stop.
package notification
