package kpidirectory

import (
	"context"
	"fmt"
	"os"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// fileFormat is the static directory document:
//
//	users:
//	  <user uuid>:
//	    - kpiDocId: sales-2026
//	      kpiIndex: 0
//	      title: New revenue
type fileFormat struct {
	Users map[string][]application.KPIReference `yaml:"users"`
}

// FileDirectory serves approved KPIs from a YAML document loaded once. It
// backs local mode and demos where no KPI tracker runs.
type FileDirectory struct {
	users map[uuid.UUID][]application.KPIReference
}

// LoadFileDirectory reads a directory document from path.
func LoadFileDirectory(path string) (*FileDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read kpi directory file: %w", err)
	}
	return ParseFileDirectory(data)
}

// ParseFileDirectory decodes a directory document.
func ParseFileDirectory(data []byte) (*FileDirectory, error) {
	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse kpi directory file: %w", err)
	}
	users := make(map[uuid.UUID][]application.KPIReference, len(doc.Users))
	for raw, refs := range doc.Users {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse kpi directory file: user %q: %w", raw, err)
		}
		users[id] = refs
	}
	return &FileDirectory{users: users}, nil
}

// ApprovedForLinking returns a copy of the user's KPIs; unknown users have
// none.
func (d *FileDirectory) ApprovedForLinking(_ context.Context, userID uuid.UUID) ([]application.KPIReference, error) {
	refs := d.users[userID]
	out := make([]application.KPIReference, len(refs))
	copy(out, refs)
	return out, nil
}
