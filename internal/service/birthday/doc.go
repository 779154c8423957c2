// Package birthday answers windowed questions about whose birthday falls
// when: the upcoming window, a single date, the current month and an age
// range.
//
// Every query is a fresh read against the ProfileRepository; nothing is
// cached between calls. Occurrence and age arithmetic is delegated to the
// recurrence package, including its Feb 29 policy.
package birthday
