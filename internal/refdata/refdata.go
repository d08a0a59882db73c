// Package refdata loads and resolves the aircraft type and airline lookup
// tables.
package refdata

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"

	"github.com/starford/skylabel/internal/models"
)

// Inserter stores reference entries, ignoring codes already present.
type Inserter interface {
	InsertReference(ctx context.Context, kind models.ReferenceKind, entries []models.ReferenceEntry) (int, error)
}

// Lookup finds the display name of a code.
type Lookup interface {
	ReferenceName(ctx context.Context, kind models.ReferenceKind, code string) (string, bool, error)
}

// presetFiles lists the seed files tried for each kind, first match wins.
// JSON is a subset of YAML, so one decoder reads both.
var presetFiles = []struct {
	kind  models.ReferenceKind
	names []string
}{
	{models.KindAirline, []string{"airlines.json", "airlines.yaml", "airlines.yml"}},
	{models.KindAircraftType, []string{"aircraft_types.json", "aircraft_types.yaml", "aircraft_types.yml"}},
}

type entry struct {
	Code string `json:"code" yaml:"code"`
	Name string `json:"name" yaml:"name"`
}

func (e entry) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Code, validation.Required),
		validation.Field(&e.Name, validation.Required),
	)
}

// Parse decodes a JSON or YAML list of {code, name} objects.
func Parse(data []byte) ([]models.ReferenceEntry, error) {
	var raw []entry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("refdata: parse: %w", err)
	}
	out := make([]models.ReferenceEntry, 0, len(raw))
	for i, e := range raw {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("refdata: entry %d: %w", i, err)
		}
		out = append(out, models.ReferenceEntry{Code: e.Code, Name: e.Name})
	}
	return out, nil
}

// LoadPresets seeds dst from the files found in dir. Missing files are
// skipped. It returns the number of new rows per kind.
func LoadPresets(ctx context.Context, dir string, dst Inserter) (map[models.ReferenceKind]int, error) {
	loaded := make(map[models.ReferenceKind]int)
	for _, p := range presetFiles {
		for _, name := range p.names {
			data, err := os.ReadFile(filepath.Join(dir, name))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return loaded, fmt.Errorf("refdata: read %s: %w", name, err)
			}
			entries, err := Parse(data)
			if err != nil {
				return loaded, fmt.Errorf("refdata: %s: %w", name, err)
			}
			n, err := dst.InsertReference(ctx, p.kind, entries)
			if err != nil {
				return loaded, err
			}
			loaded[p.kind] = n
			break
		}
	}
	return loaded, nil
}

// Resolve returns the display name for code. The reference table wins;
// when it has no entry the submitted name is used. ok is false when
// neither source has a name.
func Resolve(ctx context.Context, l Lookup, kind models.ReferenceKind, code, submitted string) (name string, ok bool, err error) {
	name, found, err := l.ReferenceName(ctx, kind, code)
	if err != nil {
		return "", false, err
	}
	if found {
		return name, true, nil
	}
	if submitted != "" {
		return submitted, true, nil
	}
	return "", false, nil
}
