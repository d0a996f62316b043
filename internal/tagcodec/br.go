package tagcodec

import (
	"crypto/sha1" //nolint:gosec // mandated by the BR password derivation formula, not used for integrity
	"fmt"
)

const (
	brHeaderByte  = 0x41
	brPCSecured   = 0x07
	brPCUnsecured = 0xC2
	brNonGS1Bit   = 0x01
)

// BRTag implements the variable-length, six-bit-ASCII payload format.
// Its security flag and length metadata live in the PC word rather than
// the EPC body, and its password derivation hashes the full EPC as
// uppercase hex rather than a fixed-width byte prefix.
type BRTag struct {
	gen2Fields
}

// NewBRTag constructs a blank BR tag with the given media id and
// security flag.
func NewBRTag(mediaID string, secured bool) (*BRTag, error) {
	t := &BRTag{}
	if err := t.SetMediaID(mediaID); err != nil {
		return nil, err
	}
	t.SetSecured(secured)
	return t, nil
}

func newBRTagFromEPC(pc [2]byte, epc []byte) *BRTag {
	t := &BRTag{}
	t.pc = pc
	t.epc = append([]byte(nil), epc...)
	return t
}

// Kind implements Tag.
func (t *BRTag) Kind() Kind { return KindBR }

// ValidateMediaID implements Tag.
func (t *BRTag) ValidateMediaID(id string) error {
	_, err := sixBitEncode(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMediaID, id)
	}
	return nil
}

// GetMediaID implements Tag.
func (t *BRTag) GetMediaID() string {
	if len(t.epc) < 2 {
		return ""
	}
	payloadLen := int(t.epc[1])
	if 2+payloadLen > len(t.epc) {
		return ""
	}
	return sixBitDecode(t.epc[2 : 2+payloadLen])
}

// SetMediaID implements Tag: packs id into a six-bit payload, records the
// packed byte length in epc[1], and appends a single zero pad byte when
// that length is odd so the full EPC stays even-length.
func (t *BRTag) SetMediaID(id string) error {
	packed, err := sixBitEncode(id)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMediaID, id)
	}
	if len(packed) > 0xFF {
		return fmt.Errorf("%w: %q", ErrInvalidMediaID, id)
	}

	epc := make([]byte, 2+len(packed))
	epc[0] = brHeaderByte
	epc[1] = byte(len(packed)) //nolint:gosec // bounds checked above
	copy(epc[2:], packed)
	if len(packed)%2 != 0 {
		epc = append(epc, 0x00)
	}
	t.epc = epc
	t.syncBRPC()
	return nil
}

// IsSecured implements Tag: PC byte 1 encodes security state directly.
func (t *BRTag) IsSecured() bool {
	return t.pc[1] == brPCSecured
}

// SetSecured implements Tag.
func (t *BRTag) SetSecured(secured bool) {
	if secured {
		t.pc[1] = brPCSecured
	} else {
		t.pc[1] = brPCUnsecured
	}
	t.syncBRPC()
}

// syncBRPC keeps the PC length field current and the non-GS1 flag set,
// without disturbing the security byte set by SetSecured.
func (t *BRTag) syncBRPC() {
	setPCLengthWords(&t.pc, uint8(len(t.epc)/2)) //nolint:gosec // epc length bounded by protocol framing
	t.pc[0] |= brNonGS1Bit
}

// AccessPassword implements Tag: BR has a single "secret" role, derived
// identically regardless of which Tag method is invoked.
func (t *BRTag) AccessPassword(secret string) [4]byte {
	return brDerivePassword(t.epc, secret)
}

// KillPassword implements Tag.
func (t *BRTag) KillPassword(secret string) [4]byte {
	return brDerivePassword(t.epc, secret)
}

// DynamicBlocks implements Tag: for BR the mutable region is the PC
// itself, not any part of the EPC body.
func (t *BRTag) DynamicBlocks() []byte {
	return []byte{t.pc[0], t.pc[1]}
}

// DynamicBlocksStartWord implements Tag: word 1, the PC word.
func (t *BRTag) DynamicBlocksStartWord() uint16 { return 1 }

// brDerivePassword implements the BR password derivation:
// SHA-1(uppercase-hex-ASCII(epc) || secret-ASCII), taking bytes 0, 2, 3, 6.
func brDerivePassword(epc []byte, secret string) [4]byte {
	h := sha1.New() //nolint:gosec // mandated by the BR password derivation formula
	h.Write([]byte(bytesToHex(epc)))
	h.Write([]byte(secret))
	sum := h.Sum(nil)
	return [4]byte{sum[0], sum[2], sum[3], sum[6]}
}
