package filesys

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/lioncash/citra/internal/result"
)

// DiskDirectory is a cursor over one directory's immediate children. The
// listing is snapshot at Open; host-side mutation afterwards is never
// observed.
type DiskDirectory struct {
	fs       afero.Fs
	path     string // resolved host path
	children []os.FileInfo
	next     int
	log      zerolog.Logger
}

var _ DirectoryBackend = (*DiskDirectory)(nil)

func newDiskDirectory(hostFS afero.Fs, hostPath string, logger zerolog.Logger) *DiskDirectory {
	return &DiskDirectory{fs: hostFS, path: hostPath, log: logger}
}

func (d *DiskDirectory) Open() error {
	if isDir, _ := afero.DirExists(d.fs, d.path); !isDir {
		return result.NotFound("opendir", d.path)
	}
	children, err := afero.ReadDir(d.fs, d.path)
	if err != nil {
		return result.NotFound("opendir", d.path).Wrap(err)
	}
	d.children = children
	d.next = 0
	return nil
}

// Read fills entries from the current cursor position and advances. Once
// the snapshot is exhausted it returns 0 forever.
func (d *DiskDirectory) Read(entries []Entry) int {
	read := 0
	for read < len(entries) && d.next < len(d.children) {
		info := d.children[d.next]
		d.log.Trace().Str("name", info.Name()).Int64("size", info.Size()).Bool("dir", info.IsDir()).Msg("directory entry")
		entries[read] = newEntry(info.Name(), uint64(info.Size()), info.IsDir())
		read++
		d.next++
	}
	return read
}

func (d *DiskDirectory) Close() error { return nil }
