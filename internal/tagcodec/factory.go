package tagcodec

import (
	"bytes"
	"fmt"
)

// FromBytes discriminates and constructs a Tag from raw (pc, epc) bytes
// observed during a reader inventory, applying the header/structural
// rules in order.
func FromBytes(pc [2]byte, epc []byte) (Tag, error) {
	switch {
	case hasHeader(epc, de386Header):
		return newDE386TagFromEPC(pc, epc), nil
	case hasHeader(epc, de290fHeader):
		return newDE290FTagFromEPC(pc, epc), nil
	case hasHeader(epc, de6Header):
		return newDE6TagFromEPC(epc), nil
	case hasHeader(epc, de290Header):
		return newDE290TagFromEPC(pc, epc, false), nil
	case hasHeader(epc, cd290Header):
		return newDE290TagFromEPC(pc, epc, true), nil
	case isBRStructural(epc):
		return newBRTagFromEPC(pc, epc), nil
	default:
		return newRawTagFromEPC(pc, epc), nil
	}
}

// FromHex is the hex-string entry point: it normalizes, validates, and
// decodes hex before delegating to FromBytes with a synthesized PC.
func FromHex(hexEPC string) (Tag, error) {
	epc, err := hexToBytes(hexEPC)
	if err != nil {
		return nil, err
	}
	return FromBytes(pcForEPCLen(len(epc)), epc)
}

func hasHeader(epc []byte, header [de290HeaderLen]byte) bool {
	return len(epc) >= de290HeaderLen && bytes.Equal(epc[:de290HeaderLen], header[:])
}

func isBRStructural(epc []byte) bool {
	if len(epc) < 2 || epc[0] != brHeaderByte {
		return false
	}
	n := int(epc[1])
	return len(epc) == 2+n+(n%2)
}

// FormatName identifies a tag format by name for construction from a
// media id, as named by the defaultTagFormat configuration key and the
// initialize endpoint's format parameter. CD290 is included as the
// legacy header selector alongside DE290.
type FormatName string

const (
	FormatDE290  FormatName = "DE290"
	FormatCD290  FormatName = "CD290"
	FormatDE290F FormatName = "DE290F"
	FormatDE386  FormatName = "DE386"
	FormatDE6    FormatName = "DE6"
	FormatBR     FormatName = "BR"
)

// FormatNameForKind maps a non-Raw Kind back to the FormatName used to
// construct a fresh instance of the same format; the edit routine needs
// it to build the new tag from the old tag's detected format.
func FormatNameForKind(kind Kind) (FormatName, error) {
	switch kind {
	case KindDE290:
		return FormatDE290, nil
	case KindCD290:
		return FormatCD290, nil
	case KindDE290F:
		return FormatDE290F, nil
	case KindDE386:
		return FormatDE386, nil
	case KindDE6:
		return FormatDE6, nil
	case KindBR:
		return FormatBR, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind)
	}
}

// NewByFormat constructs a blank tag of the named format carrying
// mediaID, for the tag-initialization operation.
func NewByFormat(format FormatName, mediaID string, secured bool) (Tag, error) {
	switch format {
	case FormatDE290:
		return NewDE290Tag(mediaID, secured, false)
	case FormatCD290:
		return NewDE290Tag(mediaID, secured, true)
	case FormatDE290F:
		return NewDE290FTag(mediaID, secured)
	case FormatDE386:
		return NewDE386Tag(mediaID, secured)
	case FormatDE6:
		return NewDE6Tag(mediaID, secured)
	case FormatBR:
		return NewBRTag(mediaID, secured)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
