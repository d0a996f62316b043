package tagcodec

import "strings"

// sixBitAlphabet is the 64-symbol alphabet used by the BR format's packed
// media-id payload. Index 0 doubles as the padding symbol.
const sixBitAlphabet = "@ABCDEFGHIJKLMNO" +
	"PQRSTUVWXYZ[\\]^-" +
	" !\"#$%&'()*+,-./" +
	"0123456789:;<=>?"

var sixBitIndex = func() map[rune]byte {
	m := make(map[rune]byte, len(sixBitAlphabet))
	for i, r := range sixBitAlphabet {
		m[r] = byte(i) //nolint:gosec // alphabet has exactly 64 entries
	}
	return m
}()

// sixBitEncode packs s, a string over sixBitAlphabet, into a byte stream
// of 6-bit symbols: every 4 symbols become 3 bytes. Short input is
// zero-padded at the symbol level to a multiple of 4 symbols.
func sixBitEncode(s string) ([]byte, error) {
	symbols := make([]byte, 0, len(s))
	for _, r := range s {
		idx, ok := sixBitIndex[r]
		if !ok {
			return nil, ErrInvalidMediaID
		}
		symbols = append(symbols, idx)
	}

	groups := (len(symbols) + 3) / 4
	padded := make([]byte, groups*4)
	copy(padded, symbols)

	out := make([]byte, groups*3)
	for g := 0; g < groups; g++ {
		a, b, c, d := padded[g*4], padded[g*4+1], padded[g*4+2], padded[g*4+3]
		out[g*3] = (a << 2) | (b >> 4)
		out[g*3+1] = (b << 4) | (c >> 2)
		out[g*3+2] = (c << 6) | d
	}
	return out, nil
}

// sixBitDecode unpacks a 6-bit-symbol byte stream into a string, skipping
// any symbol whose value is 0 (treated as padding).
func sixBitDecode(b []byte) string {
	var sb strings.Builder
	groups := len(b) / 3
	for g := 0; g < groups; g++ {
		x, y, z := b[g*3], b[g*3+1], b[g*3+2]
		syms := [4]byte{
			x >> 2,
			((x & 0x03) << 4) | (y >> 4),
			((y & 0x0F) << 2) | (z >> 6),
			z & 0x3F,
		}
		for _, s := range syms {
			if s == 0 {
				continue
			}
			sb.WriteByte(sixBitAlphabet[s])
		}
	}
	return sb.String()
}
