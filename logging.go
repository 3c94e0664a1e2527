package isorender

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

type glogLogger struct{}

// GlogLogger returns a Logger backed by glog. Debug output lands at
// verbosity 2, so it stays quiet unless -v=2 or higher is set.
func GlogLogger() Logger { return glogLogger{} }

func (glogLogger) Debug(msg string, fields ...Field) {
	if glog.V(2) {
		glog.InfoDepth(1, formatFields(msg, fields))
	}
}

func (glogLogger) Info(msg string, fields ...Field) {
	glog.InfoDepth(1, formatFields(msg, fields))
}

func (glogLogger) Warn(msg string, fields ...Field) {
	glog.WarningDepth(1, formatFields(msg, fields))
}

func (glogLogger) Error(msg string, fields ...Field) {
	glog.ErrorDepth(1, formatFields(msg, fields))
}

func formatFields(msg string, fields []Field) string {
	if len(fields) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}
