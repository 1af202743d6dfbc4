// Package result models the structured outcome word the guest receives from
// filesystem service calls. A Code carries four orthogonal fields (module,
// summary, level, description); the zero Code is the distinguished success
// value. Fallible operations return ordinary Go errors wrapping a Code, so
// callers branch with errors.As / CodeOf instead of string matching.
package result

import (
	"errors"
	"fmt"
)

// Module identifies the subsystem a result originated from.
type Module uint32

const (
	ModuleCommon Module = 0
	ModuleFS     Module = 17
	ModuleLoader Module = 27
)

// Summary is the coarse error category carried alongside the description.
type Summary uint32

const (
	SummarySuccess         Summary = 0
	SummaryNothingHappened Summary = 1
	SummaryOutOfResource   Summary = 3
	SummaryNotFound        Summary = 4
	SummaryInvalidArgument Summary = 7
	SummaryCanceled        Summary = 9
	SummaryInternal        Summary = 11
)

// Level is the severity of a result.
type Level uint32

const (
	LevelSuccess Level = 0
	LevelInfo    Level = 1
	LevelStatus  Level = 25
	LevelUsage   Level = 28
	LevelFatal   Level = 31
)

// Description is the specific condition code within a module.
type Description uint32

const (
	DescSuccess          Description = 0
	DescNotFound         Description = 120
	DescAlreadyExists    Description = 190
	DescInvalidOpenFlags Description = 230
	DescNotAFile         Description = 250
	DescInvalidPath      Description = 702
	DescTooLarge         Description = 1001
)

// Code is the four-field result word. The zero value is success.
type Code struct {
	Description Description
	Module      Module
	Summary     Summary
	Level       Level
}

// Success is the distinguished all-zero result.
var Success = Code{}

// Unknown is reported for host failures that carry no structured code.
var Unknown = Code{Module: ModuleCommon, Summary: SummaryInternal, Level: LevelStatus}

func (c Code) IsError() bool { return c != Success }

// Packed returns the fixed-width transport form: description in bits 0-9,
// module in 10-17, summary in 21-26, level in 27-31. Success packs to zero.
func (c Code) Packed() uint32 {
	return uint32(c.Description)&0x3FF |
		(uint32(c.Module)&0xFF)<<10 |
		(uint32(c.Summary)&0x3F)<<21 |
		(uint32(c.Level)&0x1F)<<27
}

// FromPacked is the inverse of Packed.
func FromPacked(v uint32) Code {
	return Code{
		Description: Description(v & 0x3FF),
		Module:      Module(v >> 10 & 0xFF),
		Summary:     Summary(v >> 21 & 0x3F),
		Level:       Level(v >> 27 & 0x1F),
	}
}

func (c Code) String() string {
	if !c.IsError() {
		return "success"
	}
	return fmt.Sprintf("module=%d summary=%d level=%d description=%d", c.Module, c.Summary, c.Level, c.Description)
}

// Error attaches a Code to a failed operation. It implements the error
// interface and is retrievable with errors.As.
type Error struct {
	Code Code
	Op   string
	Path string
	Err  error // underlying host error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s (%v)", e.Op, e.Path, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap records the underlying host error and returns e for chaining.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// CodeOf extracts the result code from an error chain. A nil error yields
// Success; an error with no embedded Code yields Unknown.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return Unknown
}

// NotFound reports a missing path or a failed host open.
func NotFound(op, path string) *Error {
	return &Error{
		Code: Code{Description: DescNotFound, Module: ModuleFS, Summary: SummaryNotFound, Level: LevelStatus},
		Op:   op, Path: path,
	}
}

// NotAFile reports a file operation against a directory.
func NotAFile(op, path string) *Error {
	return &Error{
		Code: Code{Description: DescNotAFile, Module: ModuleFS, Summary: SummaryCanceled, Level: LevelStatus},
		Op:   op, Path: path,
	}
}

// AlreadyExists reports a creation collision.
func AlreadyExists(op, path string) *Error {
	return &Error{
		Code: Code{Description: DescAlreadyExists, Module: ModuleFS, Summary: SummaryNothingHappened, Level: LevelStatus},
		Op:   op, Path: path,
	}
}

// InvalidOpenFlags reports a nonsensical open-mode combination.
func InvalidOpenFlags(op, path string) *Error {
	return &Error{
		Code: Code{Description: DescInvalidOpenFlags, Module: ModuleFS, Summary: SummaryCanceled, Level: LevelStatus},
		Op:   op, Path: path,
	}
}

// TooLarge reports an allocation failure during file creation.
func TooLarge(op, path string) *Error {
	return &Error{
		Code: Code{Description: DescTooLarge, Module: ModuleFS, Summary: SummaryOutOfResource, Level: LevelInfo},
		Op:   op, Path: path,
	}
}

// PathEscape reports a guest path whose resolution leaves the mount root.
func PathEscape(op, path string) *Error {
	return &Error{
		Code: Code{Description: DescInvalidPath, Module: ModuleFS, Summary: SummaryInvalidArgument, Level: LevelUsage},
		Op:   op, Path: path,
	}
}
