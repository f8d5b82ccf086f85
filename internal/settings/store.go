package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Store loads and saves settings.
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}

// Document is the serialized form of Settings used by the settings file and
// the HTTP API. Nil fields are absent and keep the base value on Apply.
type Document struct {
	Style                 *string  `yaml:"style,omitempty" json:"style,omitempty"`
	TapTrigger            *bool    `yaml:"tap_trigger,omitempty" json:"tap_trigger,omitempty"`
	ShakeTrigger          *bool    `yaml:"shake_trigger,omitempty" json:"shake_trigger,omitempty"`
	Delay                 *string  `yaml:"delay,omitempty" json:"delay,omitempty"`
	ReturnDurationSeconds *float64 `yaml:"return_duration_seconds,omitempty" json:"return_duration_seconds,omitempty"`
	ShakeSensitivity      *float64 `yaml:"shake_sensitivity,omitempty" json:"shake_sensitivity,omitempty"`
	Debug                 *bool    `yaml:"debug,omitempty" json:"debug,omitempty"`
}

// Document returns the fully populated serialized form of s.
func (s Settings) Document() Document {
	style := s.Style.String()
	delay := s.Delay.String()
	secs := s.ReturnDuration.Seconds()
	return Document{
		Style:                 &style,
		TapTrigger:            &s.TapTrigger,
		ShakeTrigger:          &s.ShakeTrigger,
		Delay:                 &delay,
		ReturnDurationSeconds: &secs,
		ShakeSensitivity:      &s.ShakeSensitivity,
		Debug:                 &s.Debug,
	}
}

// Apply overlays the fields present in d onto base and normalizes the result.
// Unrecognized style or delay names keep the base value.
func (d Document) Apply(base Settings) Settings {
	s := base
	if d.Style != nil {
		if v, ok := ParseStyle(*d.Style); ok {
			s.Style = v
		}
	}
	if d.TapTrigger != nil {
		s.TapTrigger = *d.TapTrigger
	}
	if d.ShakeTrigger != nil {
		s.ShakeTrigger = *d.ShakeTrigger
	}
	if d.Delay != nil {
		if v, ok := ParseTriggerDelay(*d.Delay); ok {
			s.Delay = v
		}
	}
	if d.ReturnDurationSeconds != nil {
		s.ReturnDuration = time.Duration(*d.ReturnDurationSeconds * float64(time.Second))
	}
	if d.ShakeSensitivity != nil {
		s.ShakeSensitivity = *d.ShakeSensitivity
	}
	if d.Debug != nil {
		s.Debug = *d.Debug
	}
	return s.Normalize()
}

// FileStore keeps settings in a YAML file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the settings file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the settings file. A missing file yields the defaults. A file
// that cannot be parsed yields the defaults and an error; individual bad
// fields fall back to defaults or are clamped.
func (f *FileStore) Load() (Settings, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Defaults(), fmt.Errorf("read settings: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Defaults(), fmt.Errorf("parse settings %s: %w", f.path, err)
	}
	return doc.Apply(Defaults()), nil
}

// Save writes the settings file atomically.
func (f *FileStore) Save(s Settings) error {
	data, err := yaml.Marshal(s.Document())
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// FakeStore is an in-memory Store for tests.
type FakeStore struct {
	mu       sync.Mutex
	settings Settings
	saves    int

	// LoadError and SaveError, if set, are returned by Load and Save.
	LoadError error
	SaveError error
}

// NewFakeStore creates a FakeStore holding s.
func NewFakeStore(s Settings) *FakeStore {
	return &FakeStore{settings: s}
}

func (f *FakeStore) Load() (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LoadError != nil {
		return Defaults(), f.LoadError
	}
	return f.settings, nil
}

func (f *FakeStore) Save(s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SaveError != nil {
		return f.SaveError
	}
	f.settings = s
	f.saves++
	return nil
}

// Saved returns the last saved settings and the number of saves.
func (f *FakeStore) Saved() (Settings, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings, f.saves
}
