package trace

import (
	"errors"
	"fmt"
	"runtime"
)

func Location(skip int) (string, int) {
	pc, _, line, ok := runtime.Caller(skip)
	if !ok {
		return "?", line
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "?", line
	}
	return fn.Name(), line
}

// Errorf logs a formatted message at error level, tagged with the caller's
// location, and returns it as a plain error. It's for unexpected internal
// failures that should show up in logs even when the caller only checks
// err != nil.
func Errorf(format string, a ...any) error {
	fn, line := Location(2)
	msg := fmt.Sprintf(format, a...)
	Logger.WithField("at", fmt.Sprintf("%s:%d", fn, line)).Error(msg)
	return errors.New(msg)
}
