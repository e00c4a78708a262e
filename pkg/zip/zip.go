package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
)

// Entry is one file inside an archive.
type Entry struct {
	Filename string
	Data     []byte
}

// Archive bundles the entries into an in-memory zip. Entries are written in
// filename order so repeated archives of the same set are byte-identical.
func Archive(entries []Entry) ([]byte, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Filename < sorted[j].Filename })

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, entry := range sorted {
		w, err := zw.Create(entry.Filename)
		if err != nil {
			return nil, fmt.Errorf("zip create %s: %w", entry.Filename, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("zip write %s: %w", entry.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip close: %w", err)
	}
	return buf.Bytes(), nil
}
