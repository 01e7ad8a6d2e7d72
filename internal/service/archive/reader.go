// Package archive reads the uploaded zip of a pre-built static application.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

// ErrInvalidArchive indicates the upload is not a parseable zip of a
// recognized content type.
var ErrInvalidArchive = errors.New("archive: invalid zip payload")

// EntryDocumentName is the file the deployed app is served from.
const EntryDocumentName = "index.html"

// Accepted zip content types, as declared by the uploading client.
var allowedContentTypes = map[string]struct{}{
	"application/zip":              {},
	"application/x-zip-compressed": {},
}

// Entry is one file inside the uploaded archive. Immutable once read.
type Entry struct {
	// Path is the slash-separated path as stored in the archive, including
	// the build output container folder (e.g. "dist/assets/app.js").
	Path string
	Data []byte
}

// RelativePath strips the leading container folder segment, yielding the path
// the entry document references assets by.
func (e Entry) RelativePath() string {
	if idx := strings.IndexByte(e.Path, '/'); idx >= 0 {
		return e.Path[idx+1:]
	}
	return e.Path
}

// BaseName returns the file name without directories or extension.
func (e Entry) BaseName() string {
	name := e.Path
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		name = name[:idx]
	}
	return name
}

// Extension returns the file extension without the dot, or "".
func (e Entry) Extension() string {
	name := e.Path
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 && idx < len(name)-1 {
		return name[idx+1:]
	}
	return ""
}

// IsEntryDocument reports whether this entry is the app's entry document.
func (e Entry) IsEntryDocument() bool {
	return strings.Contains(e.Path, EntryDocumentName)
}

// Archive is the parsed upload: an in-order, restartable view of its file
// entries plus the located entry document.
type Archive struct {
	entries  []Entry
	entryDoc int
}

// Open parses raw zip bytes. It fails with ErrInvalidArchive when the
// declared content type is not a recognized zip variant or the buffer cannot
// be parsed. Directory entries are dropped; file contents are read eagerly so
// the archive can be iterated repeatedly.
func Open(raw []byte, declaredType string) (*Archive, error) {
	if _, ok := allowedContentTypes[strings.ToLower(strings.TrimSpace(declaredType))]; !ok {
		return nil, fmt.Errorf("%w: content type %q is not a zip archive", ErrInvalidArchive, declaredType)
	}
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	a := &Archive{entryDoc: -1}
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open entry %q: %v", ErrInvalidArchive, file.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read entry %q: %v", ErrInvalidArchive, file.Name, err)
		}
		entry := Entry{Path: file.Name, Data: data}
		// first matching entry wins
		if a.entryDoc < 0 && entry.IsEntryDocument() {
			a.entryDoc = len(a.entries)
		}
		a.entries = append(a.entries, entry)
	}
	return a, nil
}

// Entries returns all file entries in archive order.
func (a *Archive) Entries() []Entry {
	return a.entries
}

// Len reports the number of file entries.
func (a *Archive) Len() int {
	return len(a.entries)
}

// EntryDocument returns the entry document, if one exists.
func (a *Archive) EntryDocument() (Entry, bool) {
	if a.entryDoc < 0 {
		return Entry{}, false
	}
	return a.entries[a.entryDoc], true
}
