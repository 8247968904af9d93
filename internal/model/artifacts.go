package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tphakala/myconet/internal/conf"
	"github.com/tphakala/myconet/internal/encoder"
	"github.com/tphakala/myconet/internal/errors"
)

// ErrArtifactsMissing is returned when any model file is absent at startup.
var ErrArtifactsMissing = errors.NewStd("model artifacts missing")

// MissingArtifactsMessage is shown to the user when ErrArtifactsMissing stops a command.
const MissingArtifactsMessage = "Model files not found! Please run 'myconet train' first."

// Paths locates the five artifact files.
type Paths struct {
	Plant   string
	Fungal  string
	Species string
	Light   string
	Microbe string
}

// PathsFromSettings resolves artifact paths from the model settings.
func PathsFromSettings(m *conf.ModelSettings) Paths {
	return Paths{
		Plant:   filepath.Join(m.Dir, m.Plant),
		Fungal:  filepath.Join(m.Dir, m.Fungal),
		Species: filepath.Join(m.Dir, m.Species),
		Light:   filepath.Join(m.Dir, m.Light),
		Microbe: filepath.Join(m.Dir, m.Microbe),
	}
}

func (p Paths) all() []string {
	return []string{p.Plant, p.Fungal, p.Species, p.Light, p.Microbe}
}

// Missing lists the artifact files that do not exist.
func (p Paths) Missing() []string {
	var missing []string
	for _, path := range p.all() {
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	return missing
}

// Encoders holds the categorical lookup tables of the fungal model.
type Encoders struct {
	Species *encoder.LabelEncoder
	Light   *encoder.LabelEncoder
	Microbe *encoder.LabelEncoder
}

// Set is everything the dashboard needs to serve predictions.
type Set struct {
	Plant    *Bundle
	Fungal   *Bundle
	Encoders Encoders
}

// SaveArtifacts writes both bundles and the three encoders.
func SaveArtifacts(p Paths, set *Set) error {
	if set == nil || set.Plant == nil || set.Fungal == nil ||
		set.Encoders.Species == nil || set.Encoders.Light == nil || set.Encoders.Microbe == nil {
		return errors.Newf("incomplete artifact set").
			Component("model").
			Category(errors.CategoryModelSave).
			Build()
	}

	if err := SaveBundle(p.Plant, set.Plant); err != nil {
		return err
	}
	if err := SaveBundle(p.Fungal, set.Fungal); err != nil {
		return err
	}
	if err := set.Encoders.Species.Save(p.Species); err != nil {
		return err
	}
	if err := set.Encoders.Light.Save(p.Light); err != nil {
		return err
	}
	return set.Encoders.Microbe.Save(p.Microbe)
}

// LoadArtifacts loads every artifact. If any file is missing nothing is
// loaded and the error wraps ErrArtifactsMissing naming the absent files.
func LoadArtifacts(p Paths) (*Set, error) {
	if missing := p.Missing(); len(missing) > 0 {
		return nil, errors.New(fmt.Errorf("%w: %s", ErrArtifactsMissing, strings.Join(missing, ", "))).
			Component("model").
			Category(errors.CategoryModelLoad).
			Context("missing", len(missing)).
			Build()
	}

	plant, err := LoadBundle(p.Plant)
	if err != nil {
		return nil, err
	}
	fungal, err := LoadBundle(p.Fungal)
	if err != nil {
		return nil, err
	}

	set := &Set{Plant: plant, Fungal: fungal}
	if set.Encoders.Species, err = encoder.Load(p.Species); err != nil {
		return nil, err
	}
	if set.Encoders.Light, err = encoder.Load(p.Light); err != nil {
		return nil, err
	}
	if set.Encoders.Microbe, err = encoder.Load(p.Microbe); err != nil {
		return nil, err
	}

	return set, nil
}
