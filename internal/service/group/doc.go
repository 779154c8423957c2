// Package group implements group wishes: creation with a unique invitation
// code, joining by code, and the per-contributor contribution ledger.
//
// Uniqueness of invitation codes and of (group, contributor) pairs is
// enforced by the store's unique constraints. The service treats a
// constraint violation the same way as a failed pre-check.
package group
