package util

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger = zerolog.Logger

// LogLevel represents available log levels
type LogLevel = int

// Log levels
const (
	TraceLevel LogLevel = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// InitializeLogger sets up the global logger with the specified configuration
func InitializeLogger(level LogLevel) {
	// Set time format to ISO8601
	zerolog.TimeFieldFormat = time.RFC3339

	// Set global log level based on configuration
	switch level {
	case TraceLevel:
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case DebugLevel:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case InfoLevel:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case WarnLevel:
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case ErrorLevel:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Create a console writer with nice formatting for terminal output
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	// Set global logger
	ctx := zerolog.New(output).With().Timestamp()
	if level == TraceLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	log.Info().Msg("Logger initialized")
}

// GetLogger returns a configured logger for a specific subsystem
func GetLogger(subsystem string) zerolog.Logger {
	return log.With().Str("subsystem", subsystem).Logger()
}

// FilterRule maps a subsystem name prefix to a minimum log level. Subsystem
// names are hierarchical with dots: a rule for "Service" covers "Service.FS";
// the prefix "*" matches every subsystem.
type FilterRule struct {
	Prefix string
	Level  zerolog.Level
}

// ParseFilterSpec parses a filter expression of the form
// "Service.FS:debug,Service:info,*:warn" into an ordered rule list. It is a
// pure function; applying the rules is left to LevelFor.
func ParseFilterSpec(spec string) ([]FilterRule, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}
	var rules []FilterRule
	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		name, lvl, ok := strings.Cut(tok, ":")
		if !ok {
			return nil, fmt.Errorf("filter rule %q is missing a level", tok)
		}
		level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(lvl)))
		if err != nil {
			return nil, fmt.Errorf("filter rule %q: %w", tok, err)
		}
		rules = append(rules, FilterRule{Prefix: strings.TrimSpace(name), Level: level})
	}
	return rules, nil
}

// LevelFor resolves a subsystem's minimum level against a rule list. The
// most specific matching prefix wins regardless of rule order; with no match
// the subsystem is left unclamped at trace.
func LevelFor(rules []FilterRule, subsystem string) zerolog.Level {
	level := zerolog.TraceLevel
	best := -1
	for _, r := range rules {
		var specificity int
		switch {
		case r.Prefix == "*":
			specificity = 0
		case r.Prefix == subsystem || strings.HasPrefix(subsystem, r.Prefix+"."):
			specificity = len(r.Prefix)
		default:
			continue
		}
		if specificity > best {
			best = specificity
			level = r.Level
		}
	}
	return level
}

// GetFilteredLogger returns a subsystem logger clamped to the level the
// filter rules resolve for it.
func GetFilteredLogger(rules []FilterRule, subsystem string) zerolog.Logger {
	return GetLogger(subsystem).Level(LevelFor(rules, subsystem))
}
