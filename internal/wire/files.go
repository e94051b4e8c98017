package wire

import (
	"encoding/json"
	"fmt"
)

// FileEntry is the normalized internal representation of one file a
// peer is registering: a name plus an opaque attribute bag.
type FileEntry struct {
	Name string
	Meta interface{}
}

// DecodeFileEntries normalizes payload.files, which per spec §4.4/§9 may
// arrive as either a JSON object (name -> meta) or a JSON array of
// {name|file_name, ...meta} objects. Any other shape is rejected.
func DecodeFileEntries(raw json.RawMessage) ([]FileEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	// Try object form first: {"a.txt": {...}, "b.bin": {...}}
	var asObject map[string]interface{}
	if err := json.Unmarshal(raw, &asObject); err == nil {
		entries := make([]FileEntry, 0, len(asObject))
		for name, meta := range asObject {
			entries = append(entries, FileEntry{Name: name, Meta: meta})
		}
		return entries, nil
	}

	// Otherwise try list form: [{"name": "a.txt", ...}, {"file_name": "b.bin"}]
	var asList []map[string]interface{}
	if err := json.Unmarshal(raw, &asList); err == nil {
		entries := make([]FileEntry, 0, len(asList))
		for _, item := range asList {
			name, _ := item["name"].(string)
			key := "name"
			if name == "" {
				name, _ = item["file_name"].(string)
				key = "file_name"
			}
			if name == "" {
				return nil, fmt.Errorf("files list entry missing name/file_name: %v", item)
			}
			delete(item, key)
			entries = append(entries, FileEntry{Name: name, Meta: item})
		}
		return entries, nil
	}

	return nil, fmt.Errorf("files field is neither a mapping nor a list")
}
