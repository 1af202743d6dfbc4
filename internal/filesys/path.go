package filesys

import "strconv"

// Path is an opaque guest-side path. It is constructed once and never
// mutated; resolution against a mount root happens inside the archive.
type Path struct {
	raw string
}

func NewPath(raw string) Path {
	return Path{raw: raw}
}

// String returns the flattened guest form of the path.
func (p Path) String() string { return p.raw }

// DebugStr returns a quoted form suitable for diagnostics.
func (p Path) DebugStr() string { return strconv.Quote(p.raw) }

// Mode bits in the packed cross-boundary form.
const (
	modeReadBit   = 1 << 0
	modeWriteBit  = 1 << 1
	modeCreateBit = 1 << 2
)

// Mode describes how a file handle is opened. The three flags are
// independent; a Mode is immutable once a handle has been opened with it.
type Mode struct {
	Read   bool
	Write  bool
	Create bool
}

// ModeFromBits unpacks a Mode from its bit-field form (read=1, write=2,
// create=4).
func ModeFromBits(bits uint32) Mode {
	return Mode{
		Read:   bits&modeReadBit != 0,
		Write:  bits&modeWriteBit != 0,
		Create: bits&modeCreateBit != 0,
	}
}

// Bits packs the Mode for callers that pass it across a boundary.
func (m Mode) Bits() uint32 {
	var bits uint32
	if m.Read {
		bits |= modeReadBit
	}
	if m.Write {
		bits |= modeWriteBit
	}
	if m.Create {
		bits |= modeCreateBit
	}
	return bits
}

func (m Mode) String() string {
	buf := []byte("---")
	if m.Read {
		buf[0] = 'r'
	}
	if m.Write {
		buf[1] = 'w'
	}
	if m.Create {
		buf[2] = 'c'
	}
	return string(buf)
}
