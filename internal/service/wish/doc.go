// Package wish implements the wish lifecycle state machine.
//
//	draft     -> scheduled | sent
//	scheduled -> sent | failed
//	failed    -> scheduled   (explicit Reschedule only)
//
// Every transition is a single compare-and-set write against the
// Repository, guarded by the status the service last read. Two dispatchers
// racing on the same wish therefore cannot both complete it.
package wish
