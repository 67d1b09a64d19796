package common

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// crashLogDir is where crash reports land. Set by InstallCrashHandler.
var crashLogDir = "./logs"

// InstallCrashHandler sets the crash report directory and makes sure
// it exists. Call early in main, before any deferred recovery.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		crashLogDir = logDir
	}
	if err := os.MkdirAll(crashLogDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "crash handler: failed to create log directory: %v\n", err)
	}
}

// RecoverWithCrashFile is a deferred last-chance recovery for main:
// an unhandled panic is written to a crash file before the process
// exits non-zero.
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, stackTrace(false))
		os.Exit(1)
	}
}

// WriteCrashFile writes a crash report with the panic value, the
// panicking goroutine's stack, and a full goroutine dump. Returns the
// report path, or "" when even the file write failed.
func WriteCrashFile(panicVal interface{}, stack string) string {
	path := filepath.Join(crashLogDir, fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05")))

	var report bytes.Buffer
	fmt.Fprintf(&report, "vigil crash report\n")
	fmt.Fprintf(&report, "time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&report, "version: %s\n\n", GetFullVersion())
	fmt.Fprintf(&report, "panic: %v\n\n", panicVal)
	fmt.Fprintf(&report, "stack:\n%s\n", stack)
	fmt.Fprintf(&report, "all goroutines:\n%s\n", stackTrace(true))
	fmt.Fprintf(&report, "goroutines=%d cpus=%d os=%s arch=%s\n",
		runtime.NumGoroutine(), runtime.NumCPU(), runtime.GOOS, runtime.GOARCH)

	if err := os.WriteFile(path, report.Bytes(), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "crash handler: failed to write report: %v\n%s", err, report.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "fatal crash, report saved to %s\npanic: %v\n", path, panicVal)
	return path
}

// stackTrace captures the current goroutine's stack, or every
// goroutine's when all is true.
func stackTrace(all bool) string {
	size := 8 * 1024
	if all {
		size = 256 * 1024
	}
	for {
		buf := make([]byte, size)
		n := runtime.Stack(buf, all)
		if n < len(buf) {
			return string(buf[:n])
		}
		size *= 2
		if size > 16*1024*1024 {
			return string(buf[:n])
		}
	}
}
