package log

import (
	"bytes"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// Panic records a recovered value together with the stack of the goroutine
// that recovered it. Frames belonging to the runtime and to this function are
// dropped.
func Panic(recovered any) func(e *zerolog.Event) {
	return func(e *zerolog.Event) {
		lines := bytes.Split(debug.Stack(), []byte("\n"))
		if len(lines) > 9 {
			lines = lines[9:]
		}
		e.Dict(
			"panic",
			zerolog.
				Dict().
				Str("type_name", fmt.Sprintf("%T", recovered)).
				Str("content", fmt.Sprintf("%v", recovered)).
				Bytes("stack_traces", bytes.Join(lines, []byte("\n"))),
		)
	}
}
