// Package debug carries developer tracing for scans, evaluation, index
// rebuilds and refactor operations, plus assertions that only fire in debug
// builds. Operator-facing logs go through slog instead.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/msbrefactor/internal/debug.EnableDebug=true"
var EnableDebug = "false"

var (
	// mu guards output and file, and is held for every write so traces from
	// parallel load workers never interleave.
	mu     sync.Mutex
	output io.Writer
	file   *os.File
)

// IsDebugEnabled reports whether the build flag or DEBUG=1 turned tracing on.
func IsDebugEnabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

// SetOutput sets the trace writer. nil disables tracing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// OpenLogFile starts a timestamped trace file under dir, or under the temp
// directory when dir is empty, and returns its path. A previously opened
// trace file is closed first.
func OpenLogFile(dir string) (string, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "msbrefactor-debug")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}
	path := filepath.Join(dir, "trace-"+time.Now().Format("20060102-150405.000")+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
	}
	file = f
	output = f
	return path, nil
}

// CloseLogFile closes the trace file opened by OpenLogFile, if any, and
// disables tracing.
func CloseLogFile() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	output = nil
	return err
}

func write(prefix, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if output == nil {
		return
	}
	fmt.Fprintf(output, prefix+format, args...)
}

// Log writes one trace line tagged with component.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	write("[DEBUG:"+component+"] ", format, args...)
}

// LogScan traces directory scans and project loads.
func LogScan(format string, args ...interface{}) {
	Log("SCAN", format, args...)
}

// LogEval traces property evaluation and import resolution.
func LogEval(format string, args ...interface{}) {
	Log("EVAL", format, args...)
}

// LogIndex traces property index rebuilds.
func LogIndex(format string, args ...interface{}) {
	Log("INDEX", format, args...)
}

// LogRefactor traces engine mutations.
func LogRefactor(format string, args ...interface{}) {
	Log("REFACTOR", format, args...)
}

// Assert panics with the formatted message when cond is false and debug mode
// is enabled. In normal builds it is a no-op.
func Assert(cond bool, format string, args ...interface{}) {
	if cond || !IsDebugEnabled() {
		return
	}
	msg := fmt.Sprintf(format, args...)
	write("[ASSERT] ", "%s\n", msg)
	panic("assertion failed: " + msg)
}
