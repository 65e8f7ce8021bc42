package store

import "github.com/pkg/errors"

// Sentinel errors matching the error-kind table: callers use errors.Is /
// errors.Cause (github.com/pkg/errors) to recover the kind across a
// wrapped Storage fault.
var (
	// ErrChainGap is returned by AppendBlock when the new block's number
	// does not immediately follow the current chain tip.
	ErrChainGap = errors.New("store: chain gap, block_number out of sequence")

	// ErrChainBreak is returned by AppendBlock when the new block's
	// prev_hash does not equal the current tip's state_hash.
	ErrChainBreak = errors.New("store: chain break, prev_hash mismatch")
)

// Storage wraps a backing-store error with the `Storage(reason)` kind from
// the error-handling design: any driver/IO failure surfaces as this,
// never as a raw *mysql.MySQLError or similar leaking out of the package.
func Storage(reason string, cause error) error {
	return errors.Wrapf(cause, "store: storage fault: %s", reason)
}
