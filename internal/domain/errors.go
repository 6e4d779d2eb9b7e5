package domain

import "errors"

// Error kinds for the pipeline. Per-item failures wrap one of these so the
// failure reason survives into logs and metrics instead of being discarded.
var (
	// ErrSourceData marks a malformed or incomplete position record. The
	// record is dropped and counted, never surfaced to the user.
	ErrSourceData = errors.New("malformed position record")

	// ErrQuoteUnavailable marks a failed per-symbol quote lookup. The
	// position degrades to "data unavailable" fields and the batch
	// continues.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrInsufficientHistory marks a price series too short for an
	// indicator. Only that indicator is nil, others are still computed.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrRiskService marks a network, timeout or non-2xx failure from the
	// risk-scoring service. The assessment degrades to the unknown band.
	ErrRiskService = errors.New("risk service unavailable")

	// ErrPositionSource marks a total failure of the position source. This
	// is the only failure surfaced to the caller as a blocking error.
	ErrPositionSource = errors.New("position source unavailable")
)
