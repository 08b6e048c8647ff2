package log

import (
	"runtime"

	"github.com/rs/zerolog"
)

const (
	stackSkip  = 5
	stackDepth = 32
)

type stackHook struct{}

func (h *stackHook) Run(e *zerolog.Event, level zerolog.Level, _ string) {
	if level < zerolog.ErrorLevel {
		return
	}

	arr := zerolog.Arr()
	for _, f := range frames(stackSkip) {
		arr.Dict(zerolog.Dict().
			Int("line", f.Line).
			Str("file", f.File).
			Str("function", f.Function),
		)
	}
	e.Array("stack", arr)
}

func frames(skip int) []runtime.Frame {
	var pcs [stackDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	if n == 0 {
		return nil
	}

	var (
		it  = runtime.CallersFrames(pcs[:n])
		out = make([]runtime.Frame, 0, n)
	)
	for {
		f, more := it.Next()
		out = append(out, f)
		if !more {
			break
		}
	}

	return out
}
