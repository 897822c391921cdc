package main

import (
	"errors"

	"github.com/memexlabs/memex/internal/errs"
)

// Exit codes, per the CLI's external contract: 0 success; 2 usage error;
// 3 validation error; 4 not-found; 5 quality-rejected; 6 circuit-open;
// 7 rate-limited; 1 otherwise.
const (
	exitOK              = 0
	exitUnexpected      = 1
	exitUsage           = 2
	exitValidation      = 3
	exitNotFound        = 4
	exitQualityRejected = 5
	exitCircuitOpen     = 6
	exitRateLimited     = 7
)

// exitCodeFor maps an error's taxonomy Kind onto the stable CLI exit code.
// Quality rejection shares ValidationFailed's Kind but gets its own exit
// code, so it's checked first via the sentinel.
func exitCodeFor(err error) int {
	if errors.Is(err, errs.ErrQualityRejected) {
		return exitQualityRejected
	}
	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return exitNotFound
	case errs.KindValidationFailed:
		return exitValidation
	case errs.KindCircuitOpen:
		return exitCircuitOpen
	case errs.KindRateLimited:
		return exitRateLimited
	case errs.KindInvalidArgument:
		return exitUsage
	default:
		return exitUnexpected
	}
}
