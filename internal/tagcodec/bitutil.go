package tagcodec

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// beUint64 decodes b as a big-endian unsigned 64-bit integer. b may be
// shorter than 8 bytes; it is treated as left-padded with zero bytes.
func beUint64(b []byte) uint64 {
	var buf [8]byte
	copy(buf[8-len(b):], b)
	return binary.BigEndian.Uint64(buf[:])
}

// putBEUint64 writes v as a big-endian unsigned integer into the low
// len(dst) bytes of dst (dst must be <= 8 bytes). Reports overflow if any
// of the discarded leading bytes of the full 8-byte representation are
// nonzero, i.e. v does not fit in len(dst) bytes.
func putBEUint64(dst []byte, v uint64) (overflow bool) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	for _, b := range buf[:8-len(dst)] {
		if b != 0 {
			overflow = true
			break
		}
	}
	copy(dst, buf[8-len(dst):])
	return overflow
}

// hexToBytes normalizes, validates and decodes an EPC hex string per the
// tag factory's hex-string entry point: it uppercases the input and strips
// whitespace, then requires a non-empty, even length restricted to [0-9A-F].
func hexToBytes(s string) ([]byte, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "")
	if len(s) == 0 || len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEPCHex, s)
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidEPCHex, s)
		}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEPCHex, s)
	}
	return b, nil
}

// bytesToHex renders b as uppercase hex, matching the wire representation
// used throughout the HTTP surface and the factory's hex entry point.
func bytesToHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// pcLengthWords reads the EPC-length-in-16-bit-words field from the high
// 5 bits of a PC word (bits 15..11).
func pcLengthWords(pc [2]byte) uint8 {
	return (pc[0] >> 3) & 0x1F
}

// setPCLengthWords updates the length field of a PC word in place,
// clearing bits 7..3 of pc[0] and ORing in the new length, while leaving
// pc[0]&0x07 and pc[1] untouched.
func setPCLengthWords(pc *[2]byte, words uint8) {
	pc[0] = (pc[0] & 0x07) | ((words & 0x1F) << 3)
}

// pcForEPCLen synthesizes a PC word with the length field set from the
// byte length of an EPC and all other bits zero.
func pcForEPCLen(epcLen int) [2]byte {
	var pc [2]byte
	setPCLengthWords(&pc, uint8(epcLen/2)) //nolint:gosec // epcLen is bounded by protocol framing
	return pc
}
