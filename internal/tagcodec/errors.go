package tagcodec

import "errors"

// Sentinel errors for the tag codec family. Callers should use errors.Is
// against these rather than matching on message text.
var (
	// ErrInvalidEPCHex indicates the supplied EPC hex string is not a
	// well-formed, even-length hexadecimal string.
	ErrInvalidEPCHex = errors.New("epc: invalid hex string")

	// ErrInvalidMediaID indicates a media id is rejected by the target
	// format's validation rule before any mutation is attempted.
	ErrInvalidMediaID = errors.New("tag: invalid media id for format")

	// ErrUnsupportedFormat indicates a format name does not match any
	// known tag variant.
	ErrUnsupportedFormat = errors.New("tag: unsupported format")

	// ErrMediaIDUnsupported indicates the target format has no media id
	// concept (the Raw fallback format).
	ErrMediaIDUnsupported = errors.New("tag: format does not support a media id")

	// ErrCode40Symbol indicates a decoded Code40 symbol fell outside the
	// valid [0,40) alphabet range.
	ErrCode40Symbol = errors.New("code40: symbol out of range")
)
