package importcost

import "errors"

// Sentinel errors for failures that end the run with a nonzero exit code.
var (
	ErrMissingFilePath = errors.New("missing file path argument")
	ErrInvalidArgs     = errors.New("invalid arguments")
	ErrReadInput       = errors.New("read input")
	ErrEngineInit      = errors.New("start estimation engine")
	ErrWriteOutput     = errors.New("write output")
	ErrPanic           = errors.New("unexpected panic")
	ErrInterrupted     = errors.New("interrupted")
	ErrUnknownEvent    = errors.New("unknown event")
	ErrInvalidMessage  = errors.New("message does not match schema")
)
