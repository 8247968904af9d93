// Package encoder maps categorical values to integer codes and back.
package encoder

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tphakala/myconet/internal/errors"
)

// ErrUnknownCategory is returned when a value was not seen at fit time.
var ErrUnknownCategory = errors.NewStd("unknown category")

// LabelEncoder assigns codes 0..k-1 to the sorted distinct values of a column.
type LabelEncoder struct {
	Name    string   `json:"name"`
	Classes []string `json:"classes"`

	codes map[string]int
}

// Fit builds an encoder from the values of one column. Surrounding whitespace
// is ignored.
func Fit(name string, values []string) (*LabelEncoder, error) {
	if len(values) == 0 {
		return nil, errors.Newf("cannot fit encoder %q on an empty column", name).
			Component("encoder").
			Category(errors.CategoryValidation).
			Build()
	}

	classes := make([]string, 0, len(values))
	for _, v := range values {
		classes = append(classes, strings.TrimSpace(v))
	}
	slices.Sort(classes)
	classes = slices.Compact(classes)

	e := &LabelEncoder{Name: name, Classes: classes}
	e.buildIndex()
	return e, nil
}

func (e *LabelEncoder) buildIndex() {
	e.codes = make(map[string]int, len(e.Classes))
	for i, c := range e.Classes {
		e.codes[c] = i
	}
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int { return len(e.Classes) }

// Encode returns the code of value. Unseen values fail, there is no default.
func (e *LabelEncoder) Encode(value string) (int, error) {
	code, ok := e.codes[strings.TrimSpace(value)]
	if !ok {
		return -1, errors.New(fmt.Errorf("%w: %s %q is not one of %s",
			ErrUnknownCategory, e.Name, value, strings.Join(e.Classes, ", "))).
			Component("encoder").
			Category(errors.CategoryValidation).
			Context("encoder", e.Name).
			Build()
	}
	return code, nil
}

// EncodeAll encodes every value, stopping at the first unseen one.
func (e *LabelEncoder) EncodeAll(values []string) ([]int, error) {
	codes := make([]int, len(values))
	for i, v := range values {
		code, err := e.Encode(v)
		if err != nil {
			return nil, err
		}
		codes[i] = code
	}
	return codes, nil
}

// Decode returns the class for a code.
func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", errors.Newf("%s code %d out of range [0,%d)", e.Name, code, len(e.Classes)).
			Component("encoder").
			Category(errors.CategoryValidation).
			Build()
	}
	return e.Classes[code], nil
}

// UnmarshalJSON restores the lookup index after decoding.
func (e *LabelEncoder) UnmarshalJSON(data []byte) error {
	type plain LabelEncoder
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = LabelEncoder(p)
	if len(e.Classes) == 0 {
		return fmt.Errorf("encoder %q has no classes", e.Name)
	}
	e.buildIndex()
	return nil
}

// Save writes the encoder as JSON.
func (e *LabelEncoder) Save(path string) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("encoder").
			Category(errors.CategoryModelSave).
			Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).
			Component("encoder").
			Category(errors.CategoryFileIO).
			Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(err).
			Component("encoder").
			Category(errors.CategoryFileIO).
			Context("operation", "save_encoder").
			FileContext(path).
			Build()
	}
	return nil
}

// Load reads an encoder written by Save.
func Load(path string) (*LabelEncoder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("encoder").
			Category(errors.CategoryModelLoad).
			Context("operation", "load_encoder").
			FileContext(path).
			Build()
	}
	var e LabelEncoder
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.New(fmt.Errorf("decode encoder %s: %w", path, err)).
			Component("encoder").
			Category(errors.CategoryModelLoad).
			Build()
	}
	return &e, nil
}
