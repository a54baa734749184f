package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateWorkspace builds a unique report directory for a target run:
// <baseDir>/<target>-<timestamp>-<short id>. The target is sanitized so
// URLs make valid directory names.
func CreateWorkspace(baseDir, target string) (string, error) {
	timestamp := time.Now().Format("20060102-150405")
	shortID := uuid.NewString()[:8]
	name := fmt.Sprintf("%s-%s-%s", sanitizeTarget(target), timestamp, shortID)

	dir := filepath.Join(baseDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating workspace %s: %w", dir, err)
	}
	return dir, nil
}

func sanitizeTarget(target string) string {
	replacer := strings.NewReplacer(
		"://", "-",
		"/", "-",
		":", "-",
		"?", "-",
		"&", "-",
		"=", "-",
	)
	sanitized := replacer.Replace(target)
	sanitized = strings.Trim(sanitized, "-.")
	if sanitized == "" {
		return "target"
	}
	return sanitized
}
