package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrIOFailure wraps every filesystem or encoding failure of the writer.
var ErrIOFailure = errors.New("dataset io failure")

// AppendDescriptive merges frames into the JSON object stored at path.
func AppendDescriptive(path string, frames map[string]DescriptiveFrame) error {
	return appendObject(path, frames)
}

// AppendFlat merges frames into the JSON object stored at path.
func AppendFlat(path string, frames map[string]FlatFrame) error {
	return appendObject(path, frames)
}

// ReadDescriptive loads a descriptive view. A missing file is empty.
func ReadDescriptive(path string) (map[string]DescriptiveFrame, error) {
	return readObject[DescriptiveFrame](path)
}

// ReadFlat loads a flat view. A missing file is empty.
func ReadFlat(path string) (map[string]FlatFrame, error) {
	return readObject[FlatFrame](path)
}

// appendObject rewrites path as the union of its current entries and delta.
// Existing entries are carried over byte for byte; keys in delta win. The
// new content replaces the old file by rename so a failed write leaves the
// previous content intact.
func appendObject[T any](path string, delta map[string]T) error {
	if len(delta) == 0 {
		return nil
	}

	merged, err := readRaw(path)
	if err != nil {
		return err
	}
	for key, frame := range delta {
		raw, err := json.Marshal(frame)
		if err != nil {
			return fmt.Errorf("%w: encoding %s: %w", ErrIOFailure, key, err)
		}
		merged[key] = raw
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", ErrIOFailure, path, err)
	}
	return writeAtomic(path, data)
}

func readRaw(path string) (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIOFailure, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrIOFailure, path, err)
	}
	return entries, nil
}

func readObject[T any](path string) (map[string]T, error) {
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]T, len(raw))
	for key, msg := range raw {
		var v T
		if err := json.Unmarshal(msg, &v); err != nil {
			return nil, fmt.Errorf("%w: decoding %s in %s: %w", ErrIOFailure, key, path, err)
		}
		out[key] = v
	}
	return out, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrIOFailure, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", ErrIOFailure, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing %s: %w", ErrIOFailure, tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: syncing %s: %w", ErrIOFailure, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing %s: %w", ErrIOFailure, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing %s: %w", ErrIOFailure, path, err)
	}
	return nil
}

// ReadKeys returns the keys listed in a key file, one per line. A missing
// file has no keys.
func ReadKeys(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrIOFailure, path, err)
	}
	defer f.Close()

	var keys []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if key := strings.TrimSpace(scanner.Text()); key != "" {
			keys = append(keys, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrIOFailure, path, err)
	}
	return keys, nil
}

// AppendKeys appends the keys not already listed in path, preserving the
// given order.
func AppendKeys(path string, keys []string) error {
	existing, err := ReadKeys(path)
	if err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(existing)+len(keys))
	for _, k := range existing {
		seen[k] = struct{}{}
	}

	var buf bytes.Buffer
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		buf.WriteString(k)
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrIOFailure, filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", ErrIOFailure, path, err)
	}
	defer f.Close()

	out := buf.Bytes()
	if needsNewline(path) {
		out = append([]byte{'\n'}, out...)
	}
	if _, err := f.Write(out); err != nil {
		return fmt.Errorf("%w: appending to %s: %w", ErrIOFailure, path, err)
	}
	return nil
}

// needsNewline reports whether a non-empty file lacks a trailing newline.
func needsNewline(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.Size() == 0 {
		return false
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return false
	}
	return last[0] != '\n'
}
