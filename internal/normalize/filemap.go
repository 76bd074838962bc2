package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry is one generated file.
type Entry struct {
	Path    string
	Content string
}

// FileMap is a flat path-to-content mapping that preserves the insertion
// order of the model's output. Order matters downstream: it determines the
// order files are written and which entry install/run inference sees first.
type FileMap struct {
	entries []Entry
	index   map[string]int
}

// Len returns the number of entries.
func (m *FileMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns the files in insertion order.
func (m *FileMap) Entries() []Entry {
	if m == nil {
		return nil
	}
	return m.entries
}

// Get returns the content for a path.
func (m *FileMap) Get(path string) (string, bool) {
	if m == nil {
		return "", false
	}
	i, ok := m.index[path]
	if !ok {
		return "", false
	}
	return m.entries[i].Content, true
}

// Map returns a plain map copy for persistence merges. Order is lost; callers
// that care about order use Entries.
func (m *FileMap) Map() map[string]string {
	out := make(map[string]string, m.Len())
	for _, e := range m.Entries() {
		out[e.Path] = e.Content
	}
	return out
}

// FromEntries builds a file map from ordered entries. Used by tests and by
// callers that already hold validated content.
func FromEntries(entries []Entry) (*FileMap, error) {
	m := &FileMap{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if err := m.add(e.Path, e.Content); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *FileMap) add(path, content string) error {
	if path == "" {
		return fmt.Errorf("file map: empty path")
	}
	if _, dup := m.index[path]; dup {
		// Last-write-wins is not a defined semantic here; a model emitting
		// the same path twice produced an invalid file map.
		return fmt.Errorf("file map: duplicate path %q", path)
	}
	m.index[path] = len(m.entries)
	m.entries = append(m.entries, Entry{Path: path, Content: content})
	return nil
}

// nestedEntry is the provider-specific nesting some backends emit:
// {"path": {"content": "..."}} instead of {"path": "..."}.
type nestedEntry struct {
	Content *string `json:"content"`
}

// parseFileMap decodes a JSON object into an ordered file map, unwrapping
// nested content objects. encoding/json's map decoding would destroy key
// order, so the object is walked token by token.
func parseFileMap(data []byte) (*FileMap, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("file map: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("file map: not a JSON object")
	}

	m := &FileMap{index: make(map[string]int)}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("file map: %w", err)
		}
		path, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("file map entry %q: %w", path, err)
		}
		content, err := decodeEntryValue(raw)
		if err != nil {
			return nil, fmt.Errorf("file map entry %q: %w", path, err)
		}
		if err := m.add(path, content); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("file map: %w", err)
	}
	return m, nil
}

func decodeEntryValue(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var nested nestedEntry
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Content != nil {
		return *nested.Content, nil
	}
	return "", fmt.Errorf("value is neither a string nor a content object")
}
