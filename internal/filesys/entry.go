package filesys

import (
	"encoding/binary"
	"strings"
)

// Fixed widths of the guest directory record.
const (
	EntryNameLength = 262
	ShortNameLength = 8
	ExtensionLength = 3

	// EntryWireSize is the byte length of the packed record: name buffer,
	// 8.3 name, four attribute bytes, and a little-endian u64 size.
	EntryWireSize = EntryNameLength + ShortNameLength + ExtensionLength + 4 + 8
)

// Entry is a fixed-layout directory record as the guest sees it. Name holds
// the display name truncated to the buffer width with no terminator
// guarantee beyond the bound; ShortName and Extension are the synthesized
// 8.3 form.
type Entry struct {
	Name        [EntryNameLength]byte
	ShortName   [ShortNameLength]byte
	Extension   [ExtensionLength]byte
	IsDirectory bool
	IsHidden    bool
	IsReadOnly  bool
	IsArchive   bool
	Size        uint64
}

func newEntry(name string, size uint64, isDir bool) Entry {
	var e Entry
	for i := 0; i < len(name) && i < EntryNameLength; i++ {
		e.Name[i] = name[i]
		if name[i] == 0 {
			break
		}
	}
	e.ShortName, e.Extension = SplitFilename83(name)
	e.IsDirectory = isDir
	e.IsHidden = strings.HasPrefix(name, ".")
	// The archive bit is never cleared, as on most real removable media.
	e.IsArchive = !isDir
	e.Size = size
	return e
}

// DisplayName returns the stored name up to the first NUL or the buffer
// bound.
func (e *Entry) DisplayName() string {
	for i, c := range e.Name {
		if c == 0 {
			return string(e.Name[:i])
		}
	}
	return string(e.Name[:])
}

// MarshalBinary emits the bit-exact record layout consumed by the guest.
func (e *Entry) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, EntryWireSize)
	buf = append(buf, e.Name[:]...)
	buf = append(buf, e.ShortName[:]...)
	buf = append(buf, e.Extension[:]...)
	buf = append(buf, boolByte(e.IsDirectory), boolByte(e.IsHidden), boolByte(e.IsReadOnly), boolByte(e.IsArchive))
	buf = binary.LittleEndian.AppendUint64(buf, e.Size)
	return buf, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Characters that never appear in an 8.3 name.
const forbidden83 = ".\"/\\[]:;=, "

// SplitFilename83 synthesizes the 8.3 short form of a filename. Both parts
// are space-filled and uppercased as they are stored on a FAT partition;
// forbidden characters are skipped, base names longer than eight characters
// collapse to six plus a "~1" suffix, and the extension is taken from the
// last dot (a trailing dot is ignored).
func SplitFilename83(filename string) (short [ShortNameLength]byte, ext [ExtensionLength]byte) {
	for i := range short {
		short[i] = ' '
	}
	for i := range ext {
		ext[i] = ' '
	}

	point := strings.LastIndexByte(filename, '.')
	if point == len(filename)-1 {
		point = strings.LastIndexByte(filename[:len(filename)-1], '.')
	}

	base := filename
	if point >= 0 {
		base = filename[:point]
	}
	j := 0
	for i := 0; i < len(base); i++ {
		c := base[i]
		if strings.IndexByte(forbidden83, c) >= 0 {
			continue
		}
		if j == ShortNameLength {
			short[ShortNameLength-2] = '~'
			short[ShortNameLength-1] = '1'
			break
		}
		short[j] = upperASCII(c)
		j++
	}

	if point >= 0 && point < len(filename)-1 {
		tail := filename[point+1:]
		if len(tail) > ExtensionLength {
			tail = tail[:ExtensionLength]
		}
		for i := 0; i < len(tail); i++ {
			ext[i] = upperASCII(tail[i])
		}
	}
	return short, ext
}

func upperASCII(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
