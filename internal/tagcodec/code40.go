package tagcodec

import (
	"encoding/binary"
	"fmt"
)

// code40Alphabet is the 40-symbol URN Code40 alphabet: space, A-Z, -, ., :,
// 0-9, indexed 0..39.
const code40Alphabet = " ABCDEFGHIJKLMNOPQRSTUVWXYZ-.:0123456789"

var code40Index = func() map[rune]int {
	m := make(map[rune]int, len(code40Alphabet))
	for i, r := range code40Alphabet {
		m[r] = i
	}
	return m
}()

// code40EncodeWord packs three alphabet indices into a single 16-bit Code40
// word: v = 1 + a*1600 + b*40 + c. Indices outside [0,40) are a caller bug.
func code40EncodeWord(a, b, c int) uint16 {
	return uint16(1 + a*1600 + b*40 + c) //nolint:gosec // a,b,c bounded to [0,40) by callers
}

// code40DecodeWord inverts code40EncodeWord. It subtracts the encoding's
// fixed +1 bias before the successive-division decomposition so that
// encode(decode(v)) == v holds for the full valid word range, including
// the (39,39,39) boundary triple.
func code40DecodeWord(v uint16) (a, b, c int, err error) {
	u := int(v) - 1
	if u < 0 {
		return 0, 0, 0, fmt.Errorf("%w: %d", ErrCode40Symbol, v)
	}
	a = u / 1600
	u %= 1600
	b = u / 40
	c = u % 40
	if a < 0 || a > 39 || b < 0 || b > 39 || c < 0 || c > 39 {
		return 0, 0, 0, fmt.Errorf("%w: %d", ErrCode40Symbol, v)
	}
	return a, b, c, nil
}

// code40EncodeString packs s (over code40Alphabet) into 16-bit big-endian
// words, 3 symbols per word. An incomplete final triple is padded with
// alphabet index 0 (space).
func code40EncodeString(s string) ([]byte, error) {
	idx := make([]int, 0, len(s))
	for _, r := range s {
		v, ok := code40Index[r]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMediaID, string(r))
		}
		idx = append(idx, v)
	}

	words := (len(idx) + 2) / 3
	padded := make([]int, words*3)
	copy(padded, idx)

	out := make([]byte, words*2)
	for w := 0; w < words; w++ {
		v := code40EncodeWord(padded[w*3], padded[w*3+1], padded[w*3+2])
		binary.BigEndian.PutUint16(out[w*2:], v)
	}
	return out, nil
}

// code40DecodeWords decodes a sequence of 16-bit big-endian Code40 words
// into a string of exactly wantLen symbols. It discards only the padding
// symbols code40EncodeString synthesized to fill out the final word
// (words*3 - wantLen of them, always 0, 1, or 2), rather than stripping
// every trailing space, so a decoded value with genuine trailing spaces
// round-trips correctly.
func code40DecodeWords(b []byte, wantLen int) (string, error) {
	runes := make([]rune, 0, (len(b)/2)*3)
	for i := 0; i+1 < len(b); i += 2 {
		v := binary.BigEndian.Uint16(b[i:])
		a, bb, c, err := code40DecodeWord(v)
		if err != nil {
			return "", err
		}
		runes = append(runes, rune(code40Alphabet[a]), rune(code40Alphabet[bb]), rune(code40Alphabet[c]))
	}
	if wantLen < 0 || wantLen > len(runes) {
		return "", fmt.Errorf("%w: decoded %d symbols, want %d", ErrCode40Symbol, len(runes), wantLen)
	}
	return string(runes[:wantLen]), nil
}
