package tagcodec

import (
	"fmt"
	"strconv"
)

// de6Header identifies the DE6 format.
var de6Header = [de290HeaderLen]byte{0x19, 0xED, 0x00, 0x01}

// de6FixedPC is the fixed PC value mandated for every DE6 tag.
var de6FixedPC = [2]byte{0x44, 0x00}

// DE6Tag implements the fixed-PC, big-endian-numeric media id format.
type DE6Tag struct {
	gen2Fields
}

// NewDE6Tag constructs a blank DE6 tag with the given media id and
// security flag. PC is always forced to de6FixedPC.
func NewDE6Tag(mediaID string, secured bool) (*DE6Tag, error) {
	t := &DE6Tag{}
	t.pc = de6FixedPC
	t.epc = make([]byte, de290EPCLen)
	copy(t.epc[:de290HeaderLen], de6Header[:])
	if err := t.SetMediaID(mediaID); err != nil {
		return nil, err
	}
	t.SetSecured(secured)
	return t, nil
}

func newDE6TagFromEPC(epc []byte) *DE6Tag {
	t := &DE6Tag{}
	t.pc = de6FixedPC
	t.epc = append([]byte(nil), epc...)
	return t
}

// Kind implements Tag.
func (t *DE6Tag) Kind() Kind { return KindDE6 }

// ValidateMediaID implements Tag: the media id must parse as a uint64.
func (t *DE6Tag) ValidateMediaID(id string) error {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMediaID, id)
	}
	return nil
}

// GetMediaID implements Tag.
func (t *DE6Tag) GetMediaID() string {
	return strconv.FormatUint(beUint64(t.epc[4:12]), 10)
}

// SetMediaID implements Tag.
func (t *DE6Tag) SetMediaID(id string) error {
	v, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMediaID, id)
	}
	if len(t.epc) != de290EPCLen {
		t.epc = make([]byte, de290EPCLen)
		copy(t.epc[:de290HeaderLen], de6Header[:])
	}
	putBEUint64(t.epc[4:12], v)
	t.pc = de6FixedPC
	return nil
}

// IsSecured implements Tag.
func (t *DE6Tag) IsSecured() bool {
	return t.epc[de290SecurityByte]&de290SecurityBit != 0
}

// SetSecured implements Tag.
func (t *DE6Tag) SetSecured(secured bool) {
	if secured {
		t.epc[de290SecurityByte] |= de290SecurityBit
	} else {
		t.epc[de290SecurityByte] &^= de290SecurityBit
	}
	t.pc = de6FixedPC
}

// AccessPassword implements Tag.
func (t *DE6Tag) AccessPassword(secret string) [4]byte {
	return de290DerivePassword(t.epc, secret)
}

// KillPassword implements Tag.
func (t *DE6Tag) KillPassword(secret string) [4]byte {
	return de290DerivePassword(t.epc, secret)
}

// DynamicBlocks implements Tag.
func (t *DE6Tag) DynamicBlocks() []byte {
	return append([]byte(nil), t.epc[14:16]...)
}

// DynamicBlocksStartWord implements Tag.
func (t *DE6Tag) DynamicBlocksStartWord() uint16 { return 9 }
