// Package daemon starts the capture daemon as a detached background process
// and tracks it through a PID file in the data directory.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// EnvDaemon is set in the environment of a detached daemon process.
const EnvDaemon = "INSPIRATION_DAEMON"

// ErrNotRunning is returned when no live daemon is recorded in the PID file.
var ErrNotRunning = errors.New("daemon is not running")

// Options describes how to launch the background process.
type Options struct {
	Executable string
	Args       []string
	WorkDir    string
	DataDir    string
	LogDir     string
	Logger     *zap.Logger
}

// PIDFile returns the PID file location for dataDir.
func PIDFile(dataDir string) string {
	return filepath.Join(dataDir, "run", "inspirationd.pid")
}

// IsRunningAsDaemon reports whether this process was launched by Start.
func IsRunningAsDaemon() bool {
	return os.Getenv(EnvDaemon) == "1"
}

// ReadPID returns the PID recorded in pidFile.
func ReadPID(pidFile string) (int, error) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// RunningPID returns the PID of a live daemon, or ErrNotRunning.
// A PID file pointing at a dead process is removed.
func RunningPID(dataDir string) (int, error) {
	pidFile := PIDFile(dataDir)
	pid, err := ReadPID(pidFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, ErrNotRunning
		}
		return 0, err
	}
	if !processAlive(pid) {
		os.Remove(pidFile)
		return 0, ErrNotRunning
	}
	return pid, nil
}

// Start launches the executable detached from the current session, with
// stdout and stderr appended to the daemon log, and records its PID.
func Start(opts Options) (int, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if pid, err := RunningPID(opts.DataDir); err == nil {
		return 0, fmt.Errorf("daemon already running with PID %d", pid)
	}

	pidFile := PIDFile(opts.DataDir)
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return 0, fmt.Errorf("failed to create run directory: %w", err)
	}
	if err := os.MkdirAll(opts.LogDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(opts.LogDir, "inspirationd.out")
	logF, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer logF.Close()

	cmd := exec.Command(opts.Executable, opts.Args...)
	cmd.Dir = opts.WorkDir
	cmd.Stdout = logF
	cmd.Stderr = logF
	cmd.Env = append(os.Environ(), EnvDaemon+"=1")
	cmd.SysProcAttr = detachedAttr()

	logger.Info("Starting daemon process",
		zap.String("executable", opts.Executable),
		zap.Strings("args", opts.Args))
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon process: %w", err)
	}

	pid := cmd.Process.Pid
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		cmd.Process.Kill()
		return 0, fmt.Errorf("failed to write PID file: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		logger.Warn("Failed to release daemon process", zap.Error(err))
	}

	logger.Info("Daemon started", zap.Int("pid", pid), zap.String("pid_file", pidFile))
	return pid, nil
}

// Stop asks the recorded daemon to exit and waits up to timeout for it to go.
func Stop(dataDir string, timeout time.Duration) (int, error) {
	pid, err := RunningPID(dataDir)
	if err != nil {
		return 0, err
	}
	if err := terminate(pid); err != nil {
		return pid, fmt.Errorf("failed to signal daemon: %w", err)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			os.Remove(PIDFile(dataDir))
			return pid, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return pid, fmt.Errorf("daemon (PID %d) did not exit within %s", pid, timeout)
}

// ReleasePID removes the PID file if it still names this process.
func ReleasePID(dataDir string) {
	pidFile := PIDFile(dataDir)
	if pid, err := ReadPID(pidFile); err == nil && pid == os.Getpid() {
		os.Remove(pidFile)
	}
}
