package entities

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotYourTurn is returned when an action is submitted outside the
// participant's admitted window. Turn state is unchanged.
var ErrNotYourTurn = errors.New("not your turn")

// ErrLockTimeout is returned when the session lock could not be acquired
// within the configured wait. The operation is retryable.
var ErrLockTimeout = errors.New("session lock timeout")

// ValidationError reports a malformed fact or action. It is returned
// synchronously and nothing is stored.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// RuleCycleError reports that rule derivation exceeded the configured depth.
// The derivation chain is aborted; facts accepted earlier in the same
// ingestion remain accepted.
type RuleCycleError struct {
	Depth int
	Chain []string
}

func (e *RuleCycleError) Error() string {
	return fmt.Sprintf("rule derivation exceeded depth %d: %s", e.Depth, strings.Join(e.Chain, " -> "))
}

// SnapshotChecksumError reports a corrupted snapshot. It is fatal for that
// snapshot only; recovery falls back to ledger replay.
type SnapshotChecksumError struct {
	SnapshotID string
	Want       string
	Got        string
}

func (e *SnapshotChecksumError) Error() string {
	return fmt.Sprintf("snapshot %s checksum mismatch: want %s, got %s", e.SnapshotID, e.Want, e.Got)
}
