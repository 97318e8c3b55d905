// Package storage persists the scraped artifacts as flat JSON and CSV files.
// Files are replaced atomically so a reader never sees a half written file
// and a failed run leaves the previous artifact in place.
package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/abelzeko/allerta-bot/internal/entities"
)

// ErrEmptyPayload is returned when asked to write nothing
var ErrEmptyPayload = errors.New("empty payload")

// WriteFile atomically replaces path with data
func WriteFile(path string, data []byte) error {
	if len(data) == 0 {
		return &entities.PersistError{Path: path, Err: ErrEmptyPayload}
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &entities.PersistError{Path: path, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &entities.PersistError{Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &entities.PersistError{Path: path, Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &entities.PersistError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &entities.PersistError{Path: path, Err: err}
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return &entities.PersistError{Path: path, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return &entities.PersistError{Path: path, Err: err}
	}
	return nil
}

// WriteJSON writes v indented by four spaces, non-ASCII kept as is
func WriteJSON(path string, v any) error {
	return writeJSON(path, v, "    ")
}

// WriteJSONCompact writes v on a single line, used for the map layers
func WriteJSONCompact(path string, v any) error {
	return writeJSON(path, v, "")
}

func writeJSON(path string, v any, indent string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return &entities.PersistError{Path: path, Err: err}
	}
	data := bytes.TrimRight(buf.Bytes(), "\n")
	if string(data) == "null" {
		return &entities.PersistError{Path: path, Err: ErrEmptyPayload}
	}
	return WriteFile(path, data)
}

// ReadJSON decodes path into v. A missing file reports found == false
// without error.
func ReadJSON(path string, v any) (found bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, &entities.PersistError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, &entities.PersistError{Path: path, Err: err}
	}
	return true, nil
}

// AppendCSV appends rows to path, writing header first when the file is new or empty
func AppendCSV(path string, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return &entities.PersistError{Path: path, Err: ErrEmptyPayload}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &entities.PersistError{Path: path, Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return &entities.PersistError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &entities.PersistError{Path: path, Err: err}
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 && len(header) > 0 {
		if err := w.Write(header); err != nil {
			return &entities.PersistError{Path: path, Err: err}
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return &entities.PersistError{Path: path, Err: err}
	}
	return nil
}
