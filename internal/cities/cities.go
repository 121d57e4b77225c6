// Package cities validates city names against a reference list kept in a
// local JSON file.
package cities

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrUnknownCity is returned when a name is not in the reference list.
	ErrUnknownCity = errors.New("unknown city")

	// ErrCityList is returned when the reference file cannot be read or decoded.
	ErrCityList = errors.New("city reference list unavailable")
)

// City is one entry of the reference file. Only Name is required.
type City struct {
	ID      int    `json:"id,omitempty"`
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

// File is a city validator backed by a JSON file on disk. The file is read
// on every call, so edits take effect without a restart.
type File struct {
	Path string
}

// NewFile returns a validator for the reference list at path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Names loads and returns the reference list.
func (f *File) Names() ([]City, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCityList, err)
	}

	var list []City
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", ErrCityList, f.Path, err)
	}
	return list, nil
}

// Check reports whether name is an exact match for an entry in the list.
func (f *File) Check(name string) error {
	list, err := f.Names()
	if err != nil {
		return err
	}
	for _, c := range list {
		if c.Name == name {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownCity, name)
}
