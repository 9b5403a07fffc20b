// Package control owns the pid/stop/status records and rolling log files
// that let an external supervisor coordinate with the relay loop without a
// network or IPC channel. Only the loop process writes these files.
package control

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"chatrelay/internal/domain"
)

// Log file names under the configured log directory.
const (
	LatestLogName  = "latest.log"
	RecentLogName  = "recent.log"
	WebhookLogName = "webhook.log"
)

// Files implements domain.ControlChannel on the local filesystem.
type Files struct {
	pidPath    string
	stopPath   string
	statusPath string
	logDir     string

	latestMaxChars int
	recentMaxLines int

	logger  *zap.Logger
	endOnce sync.Once
}

// NewFiles creates the control channel. Nothing touches the disk until
// Begin is called.
func NewFiles(pidPath, stopPath, statusPath, logDir string, latestMaxChars, recentMaxLines int, logger *zap.Logger) *Files {
	return &Files{
		pidPath:        pidPath,
		stopPath:       stopPath,
		statusPath:     statusPath,
		logDir:         logDir,
		latestMaxChars: latestMaxChars,
		recentMaxLines: recentMaxLines,
		logger:         logger,
	}
}

// Begin prepares the control files for a fresh run: a stale stop record from
// a previous run is deleted so it cannot immediately halt this one, the pid
// record is written, and status flips to running. Pid and status write
// failures are fatal because the supervisor depends on both existing.
func (f *Files) Begin() error {
	if pid, ok := f.readPID(); ok {
		if alive, _ := process.PidExists(int32(pid)); alive && pid != os.Getpid() {
			return fmt.Errorf("already running with pid %d", pid)
		}
		// Stale pid from a crashed run; overwrite below.
	}

	if err := os.Remove(f.stopPath); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("could not remove stale stop record", zap.Error(err))
	}

	if err := os.WriteFile(f.pidPath, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		return fmt.Errorf("write pid record: %w", err)
	}
	if err := f.writeStatus(domain.StatusRunning); err != nil {
		return fmt.Errorf("write status record: %w", err)
	}
	return nil
}

// Heartbeat rewrites the status record with a fresh timestamp, proving the
// loop process is alive.
func (f *Files) Heartbeat() error {
	return f.writeStatus(domain.StatusRunning)
}

// StopRequested reports whether the supervisor has created the stop record.
func (f *Files) StopRequested() bool {
	_, err := os.Stat(f.stopPath)
	return err == nil
}

// End writes status stopped and removes the pid record. It runs exactly
// once no matter how many exit paths reach it.
func (f *Files) End() {
	f.endOnce.Do(func() {
		if err := f.writeStatus(domain.StatusStopped); err != nil {
			f.logger.Warn("could not write final status", zap.Error(err))
		}
		if err := os.Remove(f.pidPath); err != nil && !os.IsNotExist(err) {
			f.logger.Warn("could not remove pid record", zap.Error(err))
		}
	})
}

// WriteLatest rewrites the single-block latest log, capped to the character
// limit. Log failures never take down the recognition path.
func (f *Files) WriteLatest(text string) {
	runes := []rune(text)
	if len(runes) > f.latestMaxChars {
		runes = runes[:f.latestMaxChars]
	}
	if err := f.ensureLogDir(); err != nil {
		f.logger.Warn("could not create log dir", zap.Error(err))
		return
	}
	path := filepath.Join(f.logDir, LatestLogName)
	if err := os.WriteFile(path, []byte(string(runes)), 0644); err != nil {
		f.logger.Warn("could not write latest log", zap.Error(err))
	}
}

// AppendRecent appends a timestamped line to the rolling activity log.
func (f *Files) AppendRecent(line string) {
	f.appendRolling(RecentLogName, line)
}

// AppendWebhook appends a timestamped line to the rolling delivery log.
func (f *Files) AppendWebhook(line string) {
	f.appendRolling(WebhookLogName, line)
}

func (f *Files) appendRolling(name, line string) {
	if err := f.ensureLogDir(); err != nil {
		f.logger.Warn("could not create log dir", zap.Error(err))
		return
	}
	path := filepath.Join(f.logDir, name)
	stamped := time.Now().Format("2006-01-02 15:04:05") + " " + strings.ReplaceAll(line, "\n", " ")

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		f.logger.Warn("could not read rolling log", zap.String("log", name), zap.Error(err))
		return
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		lines = nil
	}
	lines = append(lines, stamped)
	if len(lines) > f.recentMaxLines {
		lines = lines[len(lines)-f.recentMaxLines:]
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		f.logger.Warn("could not write rolling log", zap.String("log", name), zap.Error(err))
	}
}

// writeStatus writes "<state>|<unixTimestamp>" atomically (temp + rename) so
// the supervisor never observes a torn record.
func (f *Files) writeStatus(state domain.LoopStatus) error {
	line := fmt.Sprintf("%s|%d", state, time.Now().Unix())
	tmp := fmt.Sprintf("%s.%d.tmp", f.statusPath, os.Getpid())
	if err := os.WriteFile(tmp, []byte(line), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, f.statusPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (f *Files) ensureLogDir() error {
	return os.MkdirAll(f.logDir, 0755)
}

func (f *Files) readPID() (int, bool) {
	data, err := os.ReadFile(f.pidPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// ReadStatus parses a status record file into its state and timestamp.
// Returns state "unknown" when the record is missing or malformed.
func ReadStatus(path string) (string, int64) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown", 0
	}
	line := strings.TrimSpace(string(data))
	state, ts, found := strings.Cut(line, "|")
	if !found {
		if state == "" {
			state = "unknown"
		}
		return state, 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil {
		return strings.TrimSpace(state), 0
	}
	return strings.TrimSpace(state), n
}

// ReadPID reads a pid record. Returns 0 when missing or malformed.
func ReadPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// RequestStop creates the stop record the loop checks at each iteration
// boundary. Used by the supervisor-side stop command.
func RequestStop(stopPath string) error {
	return os.WriteFile(stopPath, []byte("stop\n"), 0644)
}

// Ensure Files implements domain.ControlChannel.
var _ domain.ControlChannel = (*Files)(nil)
