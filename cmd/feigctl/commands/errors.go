package commands

import "errors"

// Sentinel errors for CLI flag validation.
var (
	errEPCRequired     = errors.New("--epc flag is required")
	errMediaIDRequired = errors.New("--media-id flag is required")
)
