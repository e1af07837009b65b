package restraint

import (
	"fmt"
	"os"
	"strings"
)

// ParamLogger appends a tab-separated parameter trace, one row per call,
// flushed as it goes so a killed simulation keeps its trace. A nil
// ParamLogger is a valid no-op, which is how potentials run with tracing
// disabled.
type ParamLogger struct {
	f *os.File
}

func NewParamLogger(fileName string, columns ...string) (*ParamLogger, error) {
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	_, err = fmt.Fprintln(f, strings.Join(columns, "\t"))
	if err != nil {
		_ = f.Close()

		return nil, err
	}

	return &ParamLogger{f: f}, nil
}

func (pl *ParamLogger) Append(values ...interface{}) {
	if pl == nil || pl.f == nil {
		return
	}

	ss := make([]string, 0, len(values))
	for _, v := range values {
		ss = append(ss, fmt.Sprintf("%v", v))
	}

	_, _ = fmt.Fprintln(pl.f, strings.Join(ss, "\t"))
	_ = pl.f.Sync()
}

func (pl *ParamLogger) Close() {
	if pl == nil || pl.f == nil {
		return
	}

	_ = pl.f.Close()
	pl.f = nil
}
