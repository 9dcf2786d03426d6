package logutil

import (
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/charmbracelet/log"
)

// Configure sets the process-wide logger level and output format.
func Configure(levelRaw string) error {
	levelRaw = strings.TrimSpace(levelRaw)
	if levelRaw == "" {
		levelRaw = "info"
	}
	level, err := log.ParseLevel(levelRaw)
	if err != nil {
		return fmt.Errorf("invalid loglevel %q", levelRaw)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)
	log.SetReportTimestamp(true)
	log.SetTimeFormat(time.RFC3339)
	return nil
}

// Named returns a logger with a component prefix sharing the default sink.
func Named(component string) *log.Logger {
	return log.Default().WithPrefix(component)
}
