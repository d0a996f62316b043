package tagcodec

import (
	"crypto/sha512"
	"fmt"
	"strconv"
)

// de290HeaderLen is the length of the DE290/CD290/DE290F/DE386/DE6 header.
const de290HeaderLen = 4

// de290Header and cd290Header are the two header variants recognized as
// "DE290" by the tag factory.
var (
	de290Header = [de290HeaderLen]byte{0x19, 0xE9, 0xF8, 0x71}
	cd290Header = [de290HeaderLen]byte{0x13, 0x81, 0xF8, 0x71}
)

// de290EPCLen is the fixed 128-bit EPC length for every DE290-family,
// DE386, and DE6 tag.
const de290EPCLen = 16

// de290SecurityByte and de290SecurityBit locate the security flag shared
// by DE290, CD290, DE290F, DE386, and DE6: the LSB of the last EPC byte.
const (
	de290SecurityByte = 15
	de290SecurityBit  = 0x01
)

// DE290Tag implements the DE290/CD290 legacy-header variant: a 128-bit EPC
// whose media id is a big-endian u64 packed into bytes 4..12.
type DE290Tag struct {
	gen2Fields
	legacy bool // true selects the CD290 header variant
}

// NewDE290Tag constructs a blank DE290 tag (or, if legacy is true, its
// CD290 header variant) with the given media id and security flag.
func NewDE290Tag(mediaID string, secured, legacy bool) (*DE290Tag, error) {
	t := &DE290Tag{legacy: legacy}
	t.epc = make([]byte, de290EPCLen)
	hdr := t.header()
	copy(t.epc[:de290HeaderLen], hdr[:])
	if err := t.SetMediaID(mediaID); err != nil {
		return nil, err
	}
	t.SetSecured(secured)
	return t, nil
}

// newDE290TagFromEPC wraps raw (pc, epc) bytes observed from an inventory.
func newDE290TagFromEPC(pc [2]byte, epc []byte, legacy bool) *DE290Tag {
	t := &DE290Tag{legacy: legacy}
	t.pc = pc
	t.epc = append([]byte(nil), epc...)
	return t
}

func (t *DE290Tag) header() [de290HeaderLen]byte {
	if t.legacy {
		return cd290Header
	}
	return de290Header
}

// Kind implements Tag.
func (t *DE290Tag) Kind() Kind {
	if t.legacy {
		return KindCD290
	}
	return KindDE290
}

// ValidateMediaID implements Tag: the media id must parse as a uint64.
func (t *DE290Tag) ValidateMediaID(id string) error {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMediaID, id)
	}
	return nil
}

// GetMediaID implements Tag.
func (t *DE290Tag) GetMediaID() string {
	return strconv.FormatUint(beUint64(t.epc[4:12]), 10)
}

// SetMediaID implements Tag.
func (t *DE290Tag) SetMediaID(id string) error {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMediaID, id)
	}
	if len(t.epc) != de290EPCLen {
		t.epc = make([]byte, de290EPCLen)
		hdr := t.header()
		copy(t.epc[:de290HeaderLen], hdr[:])
	}
	putBEUint64(t.epc[4:12], v)
	t.syncPCLength()
	return nil
}

// IsSecured implements Tag.
func (t *DE290Tag) IsSecured() bool {
	return t.epc[de290SecurityByte]&de290SecurityBit != 0
}

// SetSecured implements Tag.
func (t *DE290Tag) SetSecured(secured bool) {
	if secured {
		t.epc[de290SecurityByte] |= de290SecurityBit
	} else {
		t.epc[de290SecurityByte] &^= de290SecurityBit
	}
}

// AccessPassword implements Tag: SHA-512(epc[0:12] || secret), first 4
// bytes.
func (t *DE290Tag) AccessPassword(secret string) [4]byte {
	return de290DerivePassword(t.epc, secret)
}

// KillPassword implements Tag. The formula is identical to AccessPassword;
// callers supply the kill-role secret.
func (t *DE290Tag) KillPassword(secret string) [4]byte {
	return de290DerivePassword(t.epc, secret)
}

// DynamicBlocks implements Tag: the last EPC word, which carries the
// security bit.
func (t *DE290Tag) DynamicBlocks() []byte {
	return append([]byte(nil), t.epc[14:16]...)
}

// DynamicBlocksStartWord implements Tag: word 9 of EPC memory, which
// holds the last 16-bit word of a 128-bit EPC.
func (t *DE290Tag) DynamicBlocksStartWord() uint16 { return 9 }

// de290DerivePassword implements the shared DE290-family password
// derivation: SHA-512(epc[0:12] || secret), first 4 bytes.
func de290DerivePassword(epc []byte, secret string) [4]byte {
	h := sha512.New()
	h.Write(epc[:12])
	h.Write([]byte(secret))
	sum := h.Sum(nil)
	var out [4]byte
	copy(out[:], sum[:4])
	return out
}
