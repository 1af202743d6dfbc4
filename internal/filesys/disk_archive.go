package filesys

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/lioncash/citra/internal/result"
)

// DefaultFreeBytes is the nominal capacity reported when none is configured.
const DefaultFreeBytes = 1 << 30

// DiskArchive realizes guest operations against one directory tree on the
// host. The mount root is fixed for the archive's lifetime. The host side is
// an afero.Fs so real directories and read-only in-memory image mounts share
// one implementation.
type DiskArchive struct {
	fs        afero.Fs
	mount     string
	freeBytes uint64
	log       zerolog.Logger
}

var _ ArchiveBackend = (*DiskArchive)(nil)

func NewDiskArchive(hostFS afero.Fs, mountPoint string, freeBytes uint64, logger zerolog.Logger) *DiskArchive {
	if freeBytes == 0 {
		freeBytes = DefaultFreeBytes
	}
	return &DiskArchive{
		fs:        hostFS,
		mount:     filepath.Clean(mountPoint),
		freeBytes: freeBytes,
		log:       logger,
	}
}

// MountPoint returns the absolute host directory all guest paths resolve
// against.
func (a *DiskArchive) MountPoint() string { return a.mount }

// resolve canonicalizes mount root + guest path. Any resolution that does
// not remain a descendant of the mount root is rejected before any host
// call; symlink tricks on the real host are neutralized by the secure join.
func (a *DiskArchive) resolve(op string, p Path) (string, error) {
	guest := p.String()
	lexical := filepath.Join(a.mount, guest)
	base := strings.TrimSuffix(a.mount, string(filepath.Separator)) + string(filepath.Separator)
	if lexical != a.mount && !strings.HasPrefix(lexical, base) {
		a.log.Warn().Str("path", p.DebugStr()).Msg("guest path escapes mount point")
		return "", result.PathEscape(op, guest)
	}
	// SecureJoin walks the real filesystem to resolve symlinks, so it only
	// applies when the archive is actually backed by it. In-memory mounts
	// have no symlinks and resolve lexically.
	if _, ok := a.fs.(*afero.OsFs); ok {
		resolved, err := securejoin.SecureJoin(a.mount, guest)
		if err != nil {
			a.log.Warn().Str("path", p.DebugStr()).Err(err).Msg("guest path failed to resolve")
			return "", result.PathEscape(op, guest).Wrap(err)
		}
		return resolved, nil
	}
	return lexical, nil
}

func (a *DiskArchive) OpenFile(p Path, mode Mode) (FileBackend, error) {
	a.log.Debug().Str("path", p.DebugStr()).Str("mode", mode.String()).Msg("open file")
	host, err := a.resolve("open", p)
	if err != nil {
		return nil, err
	}
	file := newDiskFile(a.fs, host, mode, a.log)
	if err := file.Open(); err != nil {
		return nil, err
	}
	return file, nil
}

func (a *DiskArchive) DeleteFile(p Path) error {
	host, err := a.resolve("delete", p)
	if err != nil {
		return err
	}
	if isDir, _ := afero.DirExists(a.fs, host); isDir {
		a.log.Debug().Str("path", p.DebugStr()).Msg("delete refused, path is a directory")
		return result.NotAFile("delete", p.String())
	}
	if exists, _ := afero.Exists(a.fs, host); !exists {
		return result.NotFound("delete", p.String())
	}
	if err := a.fs.Remove(host); err != nil {
		// Host failure modes are not distinguished further.
		return result.NotAFile("delete", p.String()).Wrap(err)
	}
	return nil
}

func (a *DiskArchive) RenameFile(src, dst Path) error {
	return a.rename("rename file", src, dst)
}

func (a *DiskArchive) RenameDirectory(src, dst Path) error {
	return a.rename("rename directory", src, dst)
}

func (a *DiskArchive) rename(op string, src, dst Path) error {
	srcHost, err := a.resolve(op, src)
	if err != nil {
		return err
	}
	dstHost, err := a.resolve(op, dst)
	if err != nil {
		return err
	}
	if err := a.fs.Rename(srcHost, dstHost); err != nil {
		a.log.Error().Str("src", src.DebugStr()).Str("dst", dst.DebugStr()).Err(err).Msg("rename failed")
		return fmt.Errorf("%s %s -> %s: %w", op, src.String(), dst.String(), err)
	}
	return nil
}

// CreateFile creates a file reporting exactly size bytes without writing
// size bytes of real data: the last byte is written at offset size-1, which
// yields a sparse file where the host supports it and a zero-filled file
// where it does not.
func (a *DiskArchive) CreateFile(p Path, size uint64) error {
	host, err := a.resolve("create", p)
	if err != nil {
		return err
	}
	if isDir, _ := afero.DirExists(a.fs, host); isDir {
		return result.NotAFile("create", p.String())
	}
	if exists, _ := afero.Exists(a.fs, host); exists {
		return result.AlreadyExists("create", p.String())
	}
	if size > math.MaxInt64 {
		return result.TooLarge("create", p.String())
	}

	file, err := a.fs.OpenFile(host, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return result.TooLarge("create", p.String()).Wrap(err)
	}
	if size > 0 {
		if _, err := file.WriteAt([]byte{0}, int64(size-1)); err != nil {
			file.Close()
			return result.TooLarge("create", p.String()).Wrap(err)
		}
	}
	if err := file.Close(); err != nil {
		return result.TooLarge("create", p.String()).Wrap(err)
	}
	a.log.Debug().Str("path", p.DebugStr()).Uint64("size", size).Msg("created file")
	return nil
}

func (a *DiskArchive) CreateDirectory(p Path) error {
	host, err := a.resolve("mkdir", p)
	if err != nil {
		return err
	}
	if err := a.fs.Mkdir(host, 0o755); err != nil {
		a.log.Error().Str("path", p.DebugStr()).Err(err).Msg("create directory failed")
		return fmt.Errorf("mkdir %s: %w", p.String(), err)
	}
	return nil
}

func (a *DiskArchive) DeleteDirectory(p Path) error {
	host, err := a.resolve("rmdir", p)
	if err != nil {
		return err
	}
	if err := a.fs.Remove(host); err != nil {
		a.log.Error().Str("path", p.DebugStr()).Err(err).Msg("delete directory failed")
		return fmt.Errorf("rmdir %s: %w", p.String(), err)
	}
	return nil
}

func (a *DiskArchive) OpenDirectory(p Path) (DirectoryBackend, error) {
	a.log.Debug().Str("path", p.DebugStr()).Msg("open directory")
	host, err := a.resolve("opendir", p)
	if err != nil {
		return nil, err
	}
	dir := newDiskDirectory(a.fs, host, a.log)
	if err := dir.Open(); err != nil {
		return nil, err
	}
	return dir, nil
}

// GetFreeBytes reports the configured nominal capacity. Real host free
// space is never queried.
func (a *DiskArchive) GetFreeBytes() uint64 { return a.freeBytes }
