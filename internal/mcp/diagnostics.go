package mcp

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DiagnosticLogger keeps server diagnostics off stdout, which carries the MCP
// stream. In MCP mode lines go to a timestamped file under the temp directory.
type DiagnosticLogger struct {
	mu       sync.Mutex
	file     *os.File
	logger   *log.Logger
	filePath string
}

// NewDiagnosticLogger creates a file-backed logger when toFile is set and a
// stderr logger otherwise
func NewDiagnosticLogger(toFile bool) *DiagnosticLogger {
	dl := &DiagnosticLogger{}
	if !toFile {
		dl.logger = log.New(os.Stderr, "[MCP] ", log.LstdFlags)
		return dl
	}

	logDir := filepath.Join(os.TempDir(), "scalaidx-mcp-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			homeDir = "."
		}
		logDir = filepath.Join(homeDir, ".scalaidx-mcp-logs")
		_ = os.MkdirAll(logDir, 0755)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("mcp-%s-%d.log", time.Now().Format("2006-01-02T150405"), os.Getpid()))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		// Logging must never break the transport
		dl.logger = log.New(io.Discard, "", 0)
		return dl
	}

	dl.file = file
	dl.filePath = logPath
	dl.logger = log.New(file, "[MCP] ", log.LstdFlags|log.Lshortfile)
	return dl
}

// newWriterLogger logs to w; used by tests
func newWriterLogger(w io.Writer) *DiagnosticLogger {
	return &DiagnosticLogger{logger: log.New(w, "", 0)}
}

func (dl *DiagnosticLogger) Printf(format string, v ...interface{}) {
	if dl == nil || dl.logger == nil {
		return
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.logger.Printf(format, v...)
}

func (dl *DiagnosticLogger) Errorf(format string, v ...interface{}) {
	if dl == nil || dl.logger == nil {
		return
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.logger.Printf("ERROR: "+format, v...)
}

// Close closes the log file if one is open
func (dl *DiagnosticLogger) Close() error {
	if dl == nil {
		return nil
	}
	dl.mu.Lock()
	defer dl.mu.Unlock()
	if dl.file != nil {
		err := dl.file.Close()
		dl.file = nil
		return err
	}
	return nil
}

// GetLogPath returns the log file path, or "" when logging to stderr
func (dl *DiagnosticLogger) GetLogPath() string {
	if dl == nil {
		return ""
	}
	return dl.filePath
}

// NoOpLogger discards everything
var NoOpLogger = &DiagnosticLogger{
	logger: log.New(io.Discard, "", 0),
}
