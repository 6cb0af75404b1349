// Package viz resolves pre-rendered graph files for upload. Rendering is
// owned by an external pipeline that drops PNGs into a shared directory;
// this package only locates them.
package viz

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/casewatch/casebot/domain"
)

// FileVisualizer serves graphs from a directory, keyed by kind and district.
type FileVisualizer struct {
	Dir string
}

var _ domain.Visualizer = (*FileVisualizer)(nil)

// NewFileVisualizer points at the graph directory.
func NewFileVisualizer(dir string) *FileVisualizer {
	return &FileVisualizer{Dir: dir}
}

func (v *FileVisualizer) resolve(name string) (string, error) {
	if v.Dir == "" {
		return "", fmt.Errorf("viz: graph directory not configured")
	}
	path := filepath.Join(v.Dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("viz: graph %s unavailable: %w", name, err)
	}
	return path, nil
}

// InfectionsGraph returns the infections graph for a district.
func (v *FileVisualizer) InfectionsGraph(districtID int) (string, error) {
	return v.resolve(fmt.Sprintf("infections_%d.png", districtID))
}

// IncidenceGraph returns the incidence graph for a district.
func (v *FileVisualizer) IncidenceGraph(districtID int) (string, error) {
	return v.resolve(fmt.Sprintf("incidence_%d.png", districtID))
}

// VaccinationGraph returns the vaccination graph for a district.
func (v *FileVisualizer) VaccinationGraph(districtID int) (string, error) {
	return v.resolve(fmt.Sprintf("vaccinations_%d.png", districtID))
}

// UserGraph returns the bot usage graph.
func (v *FileVisualizer) UserGraph() (string, error) {
	return v.resolve("users.png")
}
