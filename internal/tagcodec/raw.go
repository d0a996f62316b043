package tagcodec

// RawTag is the fallback format for EPC bytes matching no known header:
// its media id is simply the EPC rendered as uppercase hex, it carries no
// security bit or password, and it rejects mutation.
type RawTag struct {
	gen2Fields
}

func newRawTagFromEPC(pc [2]byte, epc []byte) *RawTag {
	t := &RawTag{}
	t.pc = pc
	t.epc = append([]byte(nil), epc...)
	return t
}

// Kind implements Tag.
func (t *RawTag) Kind() Kind { return KindRaw }

// ValidateMediaID implements Tag: Raw never accepts a media-id write.
func (t *RawTag) ValidateMediaID(string) error {
	return ErrMediaIDUnsupported
}

// GetMediaID implements Tag.
func (t *RawTag) GetMediaID() string {
	return bytesToHex(t.epc)
}

// SetMediaID implements Tag: Raw tags have no writable media-id region.
func (t *RawTag) SetMediaID(string) error {
	return ErrMediaIDUnsupported
}

// IsSecured implements Tag: Raw tags are never considered secured.
func (t *RawTag) IsSecured() bool { return false }

// SetSecured implements Tag as a no-op: Raw carries no security bit to
// write.
func (t *RawTag) SetSecured(bool) {}

// AccessPassword implements Tag: Raw has no derivable password.
func (t *RawTag) AccessPassword(string) [4]byte { return [4]byte{} }

// KillPassword implements Tag.
func (t *RawTag) KillPassword(string) [4]byte { return [4]byte{} }

// DynamicBlocks implements Tag: Raw has no mutable region.
func (t *RawTag) DynamicBlocks() []byte { return nil }

// DynamicBlocksStartWord implements Tag.
func (t *RawTag) DynamicBlocksStartWord() uint16 { return 0 }
