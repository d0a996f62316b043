package tagcodec

// Kind identifies which tag format family a Tag instance implements.
type Kind uint8

const (
	// KindRaw is the fallback format for EPC bytes matching no known header.
	KindRaw Kind = iota
	// KindDE290 is the 128-bit, big-endian-numeric media id format.
	KindDE290
	// KindCD290 is the legacy header variant of DE290.
	KindCD290
	// KindDE290F is the 128-bit, tagged-union media id format.
	KindDE290F
	// KindDE386 is the 128-bit, ASCII media id format.
	KindDE386
	// KindDE6 is the 128-bit, fixed-PC format.
	KindDE6
	// KindBR is the variable-length, six-bit-ASCII payload format.
	KindBR
)

// String returns the human-readable tag type name, matching the HTTP
// surface's "tagType" field.
func (k Kind) String() string {
	switch k {
	case KindDE290:
		return "DE290Tag"
	case KindCD290:
		return "CD290Tag"
	case KindDE290F:
		return "DE290FTag"
	case KindDE386:
		return "DE386Tag"
	case KindDE6:
		return "DE6Tag"
	case KindBR:
		return "BRTag"
	case KindRaw:
		return "RawTag"
	default:
		return "UnknownTag"
	}
}

// RSSIReading decorates a tag with per-antenna signal strength observed
// during the inventory that produced it.
type RSSIReading struct {
	Antenna uint8
	RSSI    int32
}

// Tag is the common contract implemented by every format variant. It is
// a closed set discriminated by Kind, not an open inheritance hierarchy:
// every variant composes the same gen2Fields helper rather than
// subclassing a base tag type.
type Tag interface {
	// Kind reports which format variant this instance implements.
	Kind() Kind

	// PC returns a defensive copy of the 2-byte Protocol Control word.
	PC() [2]byte

	// EPC returns a defensive copy of the EPC byte sequence.
	EPC() []byte

	// RSSIValues returns a defensive copy of the RSSI decorations attached
	// during the most recent inventory.
	RSSIValues() []RSSIReading

	// AddRSSIReading appends an RSSI decoration.
	AddRSSIReading(antenna uint8, rssi int32)

	// GetMediaID decodes the format-specific media id region.
	GetMediaID() string

	// SetMediaID validates and encodes a new media id, rewriting the
	// tag's epc/pc in place. Raw tags reject every call.
	SetMediaID(id string) error

	// ValidateMediaID reports whether id is acceptable to SetMediaID
	// without mutating the tag.
	ValidateMediaID(id string) error

	// IsSecured reads the format-specific security bit.
	IsSecured() bool

	// SetSecured writes the format-specific security bit, rewriting the
	// tag's epc/pc in place.
	SetSecured(secured bool)

	// AccessPassword derives the Gen-2 access password from secret and
	// this tag's identity.
	AccessPassword(secret string) [4]byte

	// KillPassword derives the Gen-2 kill password from secret and this
	// tag's identity.
	KillPassword(secret string) [4]byte

	// DynamicBlocks returns the smallest contiguous EPC/PC slice whose
	// value changes when only the security bit flips.
	DynamicBlocks() []byte

	// DynamicBlocksStartWord reports the 16-bit word address, within the
	// bank implied by the format, where DynamicBlocks starts.
	DynamicBlocksStartWord() uint16
}

// gen2Fields holds the mutable (pc, epc) byte buffers and RSSI decorations
// shared by every format, Raw included. It is composed by value into each
// concrete variant struct; it has no methods of its own that satisfy Tag,
// so there is no virtual dispatch across variants through embedding.
type gen2Fields struct {
	pc   [2]byte
	epc  []byte
	rssi []RSSIReading
}

func (g *gen2Fields) PC() [2]byte { return g.pc }

func (g *gen2Fields) EPC() []byte {
	out := make([]byte, len(g.epc))
	copy(out, g.epc)
	return out
}

func (g *gen2Fields) RSSIValues() []RSSIReading {
	out := make([]RSSIReading, len(g.rssi))
	copy(out, g.rssi)
	return out
}

func (g *gen2Fields) AddRSSIReading(antenna uint8, rssi int32) {
	g.rssi = append(g.rssi, RSSIReading{Antenna: antenna, RSSI: rssi})
}

// syncPCLength keeps the PC word's length field consistent with the
// current EPC byte length.
func (g *gen2Fields) syncPCLength() {
	setPCLengthWords(&g.pc, uint8(len(g.epc)/2)) //nolint:gosec // epc length bounded by protocol framing
}
