// =============================================================================
// Usage Insights Reporter - File Manager Utility
// =============================================================================
//
// This module handles the run's file artifacts:
//   - Writing the rendered report and the raw payload snapshot
//   - Archiving output files for long-term storage
//   - Directory management
//
// ARCHIVAL STRATEGY:
//   - Output files are written to the output directory first
//   - After a successful run they are copied to the archive directory under
//     a timestamp+run-ID name, so repeated runs never collide
//
// =============================================================================

package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Manager handles file operations for a run.
type Manager struct {
	// OutputDir is the directory where run artifacts are written.
	OutputDir string

	// ArchiveDir is the directory where artifacts are archived.
	ArchiveDir string
}

// NewManager creates a Manager for the given directories.
func NewManager(outputDir, archiveDir string) *Manager {
	return &Manager{
		OutputDir:  outputDir,
		ArchiveDir: archiveDir,
	}
}

// EnsureDirectories creates the output and archive directories if they
// don't exist.
func (m *Manager) EnsureDirectories() error {
	for _, dir := range []string{m.OutputDir, m.ArchiveDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// SaveReport writes the rendered report to the output directory and returns
// the written path. The run ID keeps concurrent and repeated runs apart.
func (m *Manager) SaveReport(text, runID string) (string, error) {
	return m.save("report", "txt", runID, []byte(text))
}

// SaveSnapshot writes the fetched raw payload to the output directory and
// returns the written path.
func (m *Manager) SaveSnapshot(raw, runID string) (string, error) {
	return m.save("usage_data", "csv", runID, []byte(raw))
}

// save writes a named artifact with a timestamp+run-ID file name.
func (m *Manager) save(prefix, ext, runID string, data []byte) (string, error) {
	name := fmt.Sprintf("%s_%s_%s.%s", prefix, time.Now().Format("20060102_150405"), runID, ext)
	path := filepath.Join(m.OutputDir, name)

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// Archive copies an output file into the archive directory.
func (m *Manager) Archive(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s for archival: %w", path, err)
	}

	archivePath := filepath.Join(m.ArchiveDir, filepath.Base(path))
	if err := os.WriteFile(archivePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write archive %s: %w", archivePath, err)
	}
	return archivePath, nil
}
