package log

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/pretty"

	"github.com/xeptore/csndl/constant"
)

const (
	FormatPretty = "pretty"
	FormatPacked = "packed"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.DurationFieldUnit = time.Millisecond
}

func newBaseLogger() zerolog.Logger {
	return zerolog.
		New(io.Discard).
		With().
		Dict(
			"app",
			zerolog.Dict().
				Str("version", constant.Version).
				Str("compilation_time", constant.CompileTime.Format(time.RFC3339)),
		).
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)
}

func NewPretty(w io.Writer) zerolog.Logger {
	return newBaseLogger().Output(newPrettyWriter(w))
}

func NewPacked(w io.Writer) zerolog.Logger {
	return newBaseLogger().Output(w)
}

// New returns a logger writing to w in the given format, at the given level.
func New(w io.Writer, format, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if nil != err {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %v", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case FormatPretty, "":
		return NewPretty(w).Level(lvl), nil
	case FormatPacked:
		return NewPacked(w).Level(lvl), nil
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q: expected one of %q or %q", format, FormatPretty, FormatPacked)
	}
}

func newPrettyWriter(out io.Writer) prettyWriter {
	return prettyWriter{out}
}

type prettyWriter struct {
	out io.Writer
}

func (p prettyWriter) Write(line []byte) (int, error) {
	if n, err := p.out.Write(pretty.Color(pretty.PrettyOptions(line, &pretty.Options{Width: 120, Indent: "  ", SortKeys: false}), nil)); nil != err {
		return n, err
	}
	return len(line), nil
}
