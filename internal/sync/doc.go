// Package sync mirrors GitHub organizations into the local store.
//
// # Passes
//
// An organization pass runs in two phases:
//
//  1. Structure. In one unit of work the organization row is refreshed, its
//     repositories are reconciled by GitHub id and its memberships are
//     reconciled by local user id. Rows that disappeared upstream are
//     tombstoned; rows that come back are revived rather than duplicated.
//  2. Activity. Every active repository of the organization gets a
//     repository pass. Progress is reported as processed*100/total.
//
// A repository pass mirrors the most recently updated pull requests and the
// commits inside the lookback window. Each pull request and each commit is
// persisted in its own unit of work so a failure halfway through keeps what
// was already written. The pass ends by recording the outcome with the
// status tracker.
//
// # Errors
//
// Failures of the organization-level GitHub calls abort the pass. During the
// activity phase an *github.APIError is recorded on the repository's status
// and the pass moves on to the next repository; any other error is recorded
// and returned.
//
// # Locks
//
// When a lock.Manager is configured, the organization pass serializes each
// repository pass on the "repository:<id>" key so that it never overlaps a
// repository sync job for the same repository.
package sync
