package localdisc

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AnishMulay/blockfs/internal/log_service"
)

// LocalDiscLogService appends one line per event to <logDir>/<nodeID>.log.
type LocalDiscLogService struct {
	nodeID        string
	mu            sync.Mutex
	logger        *log.Logger
	closer        io.Closer
	minLevel      int
	filterEnabled bool
}

func NewLocalDiscLogService(logDir string, nodeID string, minLogLevel ...string) (*LocalDiscLogService, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	filePath := filepath.Join(logDir, fmt.Sprintf("%s.log", nodeID))
	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	service := newService(file, nodeID, minLogLevel...)
	service.closer = file
	return service, nil
}

// NewWriterLogService logs to w instead of a file. Used for stderr logging in the
// command line tools.
func NewWriterLogService(w io.Writer, nodeID string, minLogLevel ...string) *LocalDiscLogService {
	return newService(w, nodeID, minLogLevel...)
}

func newService(w io.Writer, nodeID string, minLogLevel ...string) *LocalDiscLogService {
	service := &LocalDiscLogService{
		nodeID:        nodeID,
		logger:        log.New(w, "", 0),
		filterEnabled: true,
		minLevel:      log_service.DebugLevelValue,
	}

	if len(minLogLevel) > 0 && minLogLevel[0] != "" {
		service.SetMinLogLevel(minLogLevel[0])
	}
	return service
}

func (ls *LocalDiscLogService) SetMinLogLevel(level string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.minLevel = log_service.GetLevelValue(strings.ToUpper(strings.TrimSpace(level)))
	ls.filterEnabled = true
}

func (ls *LocalDiscLogService) DisableFiltering() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.filterEnabled = false
}

func (ls *LocalDiscLogService) Close() error {
	if ls.closer == nil {
		return nil
	}
	return ls.closer.Close()
}

func (ls *LocalDiscLogService) shouldLog(level string) bool {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if !ls.filterEnabled {
		return true
	}
	return log_service.GetLevelValue(level) >= ls.minLevel
}

// formatLog renders metadata keys in sorted order so lines are diffable.
func formatLog(level string, event log_service.LogEvent) string {
	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	keys := make([]string, 0, len(event.Metadata))
	for k := range event.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var meta strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&meta, " %s=%v", k, event.Metadata[k])
	}

	return fmt.Sprintf("%s [%s] %s: %s%s", ts.Format(time.RFC3339), event.NodeID, level, event.Message, meta.String())
}

func (ls *LocalDiscLogService) log(level string, event log_service.LogEvent) {
	if !ls.shouldLog(level) {
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	event.NodeID = ls.nodeID
	ls.logger.Println(formatLog(level, event))
}

func (ls *LocalDiscLogService) Debug(event log_service.LogEvent) {
	ls.log(log_service.DebugLevel, event)
}

func (ls *LocalDiscLogService) Info(event log_service.LogEvent) {
	ls.log(log_service.InfoLevel, event)
}

func (ls *LocalDiscLogService) Warn(event log_service.LogEvent) {
	ls.log(log_service.WarnLevel, event)
}

func (ls *LocalDiscLogService) Error(event log_service.LogEvent) {
	ls.log(log_service.ErrorLevel, event)
}

var _ log_service.LogService = (*LocalDiscLogService)(nil)
