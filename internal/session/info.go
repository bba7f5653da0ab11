package session

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/blackwell-systems/failtrack/internal/fsx"
)

// Info is the write-once metadata recorded at session start.
type Info struct {
	SessionID   string `json:"session_id"`
	StartTime   string `json:"start_time"`
	PID         int    `json:"pid"`
	PPID        int    `json:"ppid"`
	Hostname    string `json:"hostname"`
	WorkingDir  string `json:"working_dir"`
	User        string `json:"user"`
	ContainerID string `json:"container_id"`
}

// StartedAt parses the recorded start time.
func (i *Info) StartedAt() (time.Time, error) {
	return time.Parse(time.RFC3339, i.StartTime)
}

// WriteInfoOnce records session metadata in the session directory on the
// first hook invocation. Subsequent calls are no-ops: the file is never
// overwritten.
func WriteInfoOnce(writer *fsx.Writer, sessionDir, sessionID string) error {
	infoPath := filepath.Join(sessionDir, InfoFile)
	if _, err := os.Stat(infoPath); err == nil {
		return nil
	}

	hostname, _ := os.Hostname()
	cwd, _ := os.Getwd()

	info := Info{
		SessionID:   sessionID,
		StartTime:   time.Now().Format(time.RFC3339),
		PID:         os.Getpid(),
		PPID:        os.Getppid(),
		Hostname:    hostname,
		WorkingDir:  cwd,
		User:        envOr("USER", "unknown"),
		ContainerID: envOr("HOSTNAME", hostname),
	}

	return writer.WriteAtomic(infoPath, func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	})
}

// ReadInfo loads the metadata file from a session directory.
func ReadInfo(sessionDir string) (*Info, error) {
	data, err := os.ReadFile(filepath.Join(sessionDir, InfoFile))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
