// Package model persists fitted models and their lookup tables.
package model

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"

	"github.com/tphakala/myconet/internal/dataset"
	"github.com/tphakala/myconet/internal/errors"
	"github.com/tphakala/myconet/internal/forest"
)

// Model names used in bundles, metrics and the training run registry.
const (
	PlantHealth   = "plant_health"
	FungalNetwork = "fungal_network"
)

// Bundle is one fitted classifier with everything needed to score a raw row.
type Bundle struct {
	Name         string                `json:"name"`
	Features     []string              `json:"features"`      // column names in model order
	DisplayNames []string              `json:"display_names"` // human readable feature names
	Classes      []string              `json:"classes"`       // label for each class code
	Scaler       *dataset.MinMaxScaler `json:"scaler"`
	Forest       *forest.Forest        `json:"forest"`
	Accuracy     float64               `json:"accuracy"` // held-out accuracy at training time
	Rows         int                   `json:"rows"`     // cleaned rows used for fitting and evaluation
	TrainedAt    time.Time             `json:"trained_at"`
}

// Validate checks that the bundle is internally consistent.
func (b *Bundle) Validate() error {
	fail := func(format string, args ...any) error {
		return errors.Newf(format, args...).
			Component("model").
			Category(errors.CategoryModelLoad).
			Context("model", b.Name).
			Build()
	}

	if b.Forest == nil || b.Scaler == nil {
		return fail("model %s is missing its forest or scaler", b.Name)
	}
	if err := b.Forest.Validate(); err != nil {
		return err
	}
	if len(b.Features) != b.Forest.NFeatures {
		return fail("model %s lists %d features but the forest expects %d", b.Name, len(b.Features), b.Forest.NFeatures)
	}
	if len(b.DisplayNames) != len(b.Features) {
		return fail("model %s has %d display names for %d features", b.Name, len(b.DisplayNames), len(b.Features))
	}
	if len(b.Classes) != b.Forest.NClasses {
		return fail("model %s lists %d classes but the forest has %d", b.Name, len(b.Classes), b.Forest.NClasses)
	}
	if len(b.Scaler.Min) != len(b.Scaler.Columns) || len(b.Scaler.Max) != len(b.Scaler.Columns) {
		return fail("model %s has a malformed scaler", b.Name)
	}
	for _, c := range b.Scaler.Columns {
		if c < 0 || c >= len(b.Features) {
			return fail("model %s scales unknown column %d", b.Name, c)
		}
	}
	return nil
}

// Prepare scales a raw feature row for the forest.
func (b *Bundle) Prepare(row []float64) []float64 {
	return b.Scaler.TransformRow(row)
}

// SaveBundle writes b as zstd-compressed JSON.
func SaveBundle(path string, b *Bundle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return errors.New(err).
			Component("model").
			Category(errors.CategoryModelSave).
			Context("model", b.Name).
			Build()
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return errors.New(err).Component("model").Category(errors.CategoryModelSave).Build()
	}
	compressed := enc.EncodeAll(raw, nil)
	if err := enc.Close(); err != nil {
		return errors.New(err).Component("model").Category(errors.CategoryModelSave).Build()
	}

	return writeFileAtomic(path, compressed)
}

// LoadBundle reads and validates a bundle written by SaveBundle.
func LoadBundle(path string) (*Bundle, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("model").
			Category(errors.CategoryModelLoad).
			Context("operation", "load_bundle").
			FileContext(path).
			Build()
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.New(err).Component("model").Category(errors.CategoryModelLoad).Build()
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, errors.New(fmt.Errorf("decompress %s: %w", path, err)).
			Component("model").
			Category(errors.CategoryModelLoad).
			Build()
	}

	var b Bundle
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&b); err != nil {
		return nil, errors.New(fmt.Errorf("decode %s: %w", path, err)).
			Component("model").
			Category(errors.CategoryModelLoad).
			Build()
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// writeFileAtomic writes data to a temp file in the target directory and renames it.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(err).Component("model").Category(errors.CategoryFileIO).Build()
	}

	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return errors.New(err).Component("model").Category(errors.CategoryFileIO).Build()
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.New(err).Component("model").Category(errors.CategoryFileIO).Build()
	}
	if err := tmp.Close(); err != nil {
		return errors.New(err).Component("model").Category(errors.CategoryFileIO).Build()
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.New(err).Component("model").Category(errors.CategoryFileIO).Build()
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.New(err).
			Component("model").
			Category(errors.CategoryFileIO).
			Context("operation", "rename_artifact").
			FileContext(path).
			Build()
	}
	return nil
}
