package tagcodec

import (
	"bytes"
	"errors"
	"testing"
)

func TestBEUint64RoundTrip(t *testing.T) {
	t.Parallel()

	for _, v := range []uint64{0, 1, 255, 256, 22062, 1<<56 - 1} {
		var buf [7]byte
		if overflow := putBEUint64(buf[:], v); overflow {
			t.Fatalf("putBEUint64(%d) reported overflow in 7 bytes", v)
		}
		if got := beUint64(buf[:]); got != v {
			t.Errorf("beUint64(putBEUint64(%d)) = %d", v, got)
		}
	}
}

func TestPutBEUint64ReportsOverflow(t *testing.T) {
	t.Parallel()

	var buf [7]byte
	if overflow := putBEUint64(buf[:], 1<<56); !overflow {
		t.Error("putBEUint64(2^56) into 7 bytes did not report overflow")
	}
	var wide [8]byte
	if overflow := putBEUint64(wide[:], 1<<63); overflow {
		t.Error("putBEUint64(2^63) into 8 bytes reported overflow")
	}
}

func TestPCLengthFieldRoundTrip(t *testing.T) {
	t.Parallel()

	pc := [2]byte{0x07, 0xC2}
	setPCLengthWords(&pc, 8)
	if pc[0] != 0x47 {
		t.Errorf("pc[0] = 0x%02X, want 0x47 (length 8 ORed over preserved low bits)", pc[0])
	}
	if pc[1] != 0xC2 {
		t.Errorf("pc[1] = 0x%02X, want 0xC2 untouched", pc[1])
	}
	if got := pcLengthWords(pc); got != 8 {
		t.Errorf("pcLengthWords = %d, want 8", got)
	}

	setPCLengthWords(&pc, 24)
	if got := pcLengthWords(pc); got != 24 {
		t.Errorf("pcLengthWords = %d after update, want 24", got)
	}
	if pc[0]&0x07 != 0x07 {
		t.Errorf("pc[0] low bits = 0x%02X, want 0x07 preserved", pc[0]&0x07)
	}
}

// TestPCLengthCoherence verifies that for every constructed variant the
// PC length field times two equals the EPC byte length.
func TestPCLengthCoherence(t *testing.T) {
	t.Parallel()

	for _, c := range []struct {
		format  FormatName
		mediaID string
	}{
		{FormatDE290, "22062"},
		{FormatCD290, "12345"},
		{FormatDE290F, "49HBZUBD0012345"},
		{FormatDE386, "BX123"},
		{FormatDE6, "4711"},
		{FormatBR, "BOOK 42"},
	} {
		tag, err := NewByFormat(c.format, c.mediaID, true)
		if err != nil {
			t.Fatalf("NewByFormat(%s, %q): %v", c.format, c.mediaID, err)
		}
		if got, want := int(pcLengthWords(tag.PC()))*2, len(tag.EPC()); got != want {
			t.Errorf("%s: PC length field covers %d bytes, EPC is %d bytes", c.format, got, want)
		}
	}
}

func TestHexToBytesNormalizes(t *testing.T) {
	t.Parallel()

	want := []byte{0x19, 0xE9, 0xF8, 0x71}
	for _, s := range []string{"19E9F871", "19e9f871", " 19E9 F871 ", "19e9F871"} {
		got, err := hexToBytes(s)
		if err != nil {
			t.Fatalf("hexToBytes(%q): %v", s, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("hexToBytes(%q) = % X, want % X", s, got, want)
		}
	}
}

func TestHexToBytesRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "ABC", "GG", "0x41", "41-42"} {
		if _, err := hexToBytes(s); !errors.Is(err, ErrInvalidEPCHex) {
			t.Errorf("hexToBytes(%q) error = %v, want ErrInvalidEPCHex", s, err)
		}
	}
}
