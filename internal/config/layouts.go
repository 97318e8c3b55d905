package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"dario.cat/mergo"
	"github.com/abelzeko/allerta-bot/internal/extract"
	"github.com/titanous/json5"
)

// LoadLayouts returns the built-in extraction layouts with the given JSON5
// file merged on top, followed by its "<name>.local.<ext>" sibling. An empty
// path or missing files leave the defaults untouched.
//
// Bulletin layouts are merged by version: an entry whose version matches a
// built-in one updates that layout only, any other entry is added. Fields are
// merged one by one and a zero value ("", 0, false, empty list) means "keep
// the current value", so a setting cannot be overridden to zero. A non-empty
// list replaces the current list as a whole.
func LoadLayouts(path string) (extract.Layouts, error) {
	layouts := extract.DefaultLayouts()
	if path == "" {
		return layouts, nil
	}

	ext := filepath.Ext(path)
	local := strings.TrimSuffix(path, ext) + ".local" + ext

	for _, name := range []string{path, local} {
		data, err := os.ReadFile(name)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return layouts, err
		}
		var override extract.Layouts
		if err := json5.Unmarshal(data, &override); err != nil {
			return layouts, fmt.Errorf("layouts %s: %w", name, err)
		}
		bulletins := override.Bulletins
		override.Bulletins = nil
		if err := mergo.Merge(&layouts, override, mergo.WithOverride); err != nil {
			return layouts, fmt.Errorf("layouts %s: %w", name, err)
		}
		if layouts.Bulletins, err = mergeBulletins(layouts.Bulletins, bulletins); err != nil {
			return layouts, fmt.Errorf("layouts %s: %w", name, err)
		}
		slog.Info("merging extraction layouts", "file", name)
	}
	return layouts, nil
}

func mergeBulletins(current, override []extract.BulletinLayout) ([]extract.BulletinLayout, error) {
	merged := append([]extract.BulletinLayout(nil), current...)
	for _, o := range override {
		if o.Version == "" {
			return nil, fmt.Errorf("bulletin layout without version")
		}
		i := slices.IndexFunc(merged, func(b extract.BulletinLayout) bool { return b.Version == o.Version })
		if i < 0 {
			merged = append(merged, o)
			continue
		}
		if err := mergo.Merge(&merged[i], o, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("bulletin layout %s: %w", o.Version, err)
		}
	}
	return merged, nil
}
