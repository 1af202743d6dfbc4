// Package loader identifies input image formats and hands a successfully
// loaded image to the archive service as a read-only mount.
package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/lioncash/citra/internal/service"
)

// FileType is a recognized image format.
type FileType int

const (
	FileTypeError FileType = iota - 1
	FileTypeUnknown
	FileTypeCCI
	FileTypeCXI
	FileTypeELF
	FileTypeTHREEDSX
)

func (t FileType) String() string {
	switch t {
	case FileTypeCCI:
		return "NCSD"
	case FileTypeCXI:
		return "NCCH"
	case FileTypeELF:
		return "ELF"
	case FileTypeTHREEDSX:
		return "3DSX"
	case FileTypeError:
		return "error"
	default:
		return "unknown"
	}
}

// IdentifyFile sniffs an image's format from its magic bytes.
func IdentifyFile(r io.ReaderAt) FileType {
	var head [4]byte
	if _, err := r.ReadAt(head[:], 0); err == nil {
		switch {
		case head == [4]byte{0x7F, 'E', 'L', 'F'}:
			return FileTypeELF
		case string(head[:]) == "3DSX":
			return FileTypeTHREEDSX
		}
	}
	// NCSD/NCCH carry their magic at 0x100.
	var magic [4]byte
	if _, err := r.ReadAt(magic[:], 0x100); err == nil {
		switch string(magic[:]) {
		case "NCSD":
			return FileTypeCCI
		case "NCCH":
			return FileTypeCXI
		}
	}
	return FileTypeUnknown
}

// GuessFromExtension maps a filename extension to a format for files whose
// contents could not be identified.
func GuessFromExtension(ext string) FileType {
	switch strings.ToLower(ext) {
	case ".elf", ".axf":
		return FileTypeELF
	case ".cci", ".3ds":
		return FileTypeCCI
	case ".cxi":
		return FileTypeCXI
	case ".3dsx":
		return FileTypeTHREEDSX
	default:
		return FileTypeUnknown
	}
}

// Load identifies the image at path, mounts its contents read-only in
// memory, and registers the mount with the manager under the RomFS archive
// type. The registered archive serves reads without requiring write or
// create support.
func Load(hostFS afero.Fs, path string, mgr *service.Manager, logger zerolog.Logger) (FileType, error) {
	file, err := hostFS.Open(path)
	if err != nil {
		logger.Error().Str("path", path).Err(err).Msg("failed to open image")
		return FileTypeError, fmt.Errorf("open image %s: %w", path, err)
	}
	defer file.Close()

	fileType := IdentifyFile(file)
	if fileType == FileTypeUnknown {
		logger.Warn().Str("path", path).Msg("could not identify file type, guessing from extension")
		fileType = GuessFromExtension(filepath.Ext(path))
	}
	if fileType == FileTypeUnknown {
		return FileTypeUnknown, fmt.Errorf("unknown image format: %s", path)
	}

	data, err := afero.ReadFile(hostFS, path)
	if err != nil {
		return FileTypeError, fmt.Errorf("read image %s: %w", path, err)
	}

	mem := afero.NewMemMapFs()
	if err := afero.WriteFile(mem, "/"+filepath.Base(path), data, 0o444); err != nil {
		return FileTypeError, fmt.Errorf("stage image %s: %w", path, err)
	}

	factory := &service.DiskFactory{
		FS:         afero.NewReadOnlyFs(mem),
		MountPoint: "/",
		Logger:     logger,
	}
	if err := mgr.RegisterArchiveType(service.ArchiveRomFS, factory); err != nil {
		return fileType, err
	}
	logger.Info().Str("path", path).Str("type", fileType.String()).Msg("registered read-only archive")
	return fileType, nil
}
