package logger

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync/atomic"
)

// Component logger used across the codebase. Output is one line per entry:
//   2026/01/02 15:04:05 INFO  [pipeline] message key=value ...

var (
	std   = log.New(os.Stderr, "", log.LstdFlags)
	debug atomic.Bool
)

func SetDebug(enabled bool) {
	debug.Store(enabled)
}

func DebugEnabled() bool {
	return debug.Load()
}

func DebugC(component, msg string) {
	if !debug.Load() {
		return
	}
	std.Printf("DEBUG [%s] %s", component, msg)
}

func DebugCF(component, msg string, fields map[string]any) {
	if !debug.Load() {
		return
	}
	std.Printf("DEBUG [%s] %s%s", component, msg, formatFields(fields))
}

func InfoC(component, msg string) {
	std.Printf("INFO  [%s] %s", component, msg)
}

func InfoCF(component, msg string, fields map[string]any) {
	std.Printf("INFO  [%s] %s%s", component, msg, formatFields(fields))
}

func WarnC(component, msg string) {
	std.Printf("WARN  [%s] %s", component, msg)
}

func WarnCF(component, msg string, fields map[string]any) {
	std.Printf("WARN  [%s] %s%s", component, msg, formatFields(fields))
}

func ErrorC(component, msg string) {
	std.Printf("ERROR [%s] %s", component, msg)
}

func ErrorCF(component, msg string, fields map[string]any) {
	std.Printf("ERROR [%s] %s%s", component, msg, formatFields(fields))
}

func formatFields(fields map[string]any) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(formatValue(fields[k]))
	}
	return b.String()
}

func formatValue(v any) string {
	s := fmt.Sprintf("%v", v)
	if strings.ContainsAny(s, " \t\n") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
