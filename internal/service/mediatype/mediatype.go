// Package mediatype classifies uploaded files by extension. The table is the
// closed set of asset types the platform will host; anything else is skipped
// by the deployment pipeline.
package mediatype

import "strings"

// Category is the coarse type tag an asset is stored under.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
	CategoryVideo    Category = "video"
	CategoryAudio    Category = "audio"
	CategoryScript   Category = "script"
	CategoryStyle    Category = "style"
	CategoryData     Category = "data"
)

// Descriptor describes how one file extension is stored and labeled.
type Descriptor struct {
	MimeType  string
	Category  Category
	Extension string
}

// IsImage reports whether the asset store should auto-name this file.
func (d Descriptor) IsImage() bool {
	return d.Category == CategoryImage
}

// supported maps file extensions to their media descriptors. Never mutated at
// runtime.
var supported = map[string]Descriptor{
	"html": {MimeType: "text/html", Category: CategoryDocument, Extension: "html"},
	"css":  {MimeType: "text/css", Category: CategoryStyle, Extension: "css"},
	"js":   {MimeType: "application/javascript", Category: CategoryScript, Extension: "js"},
	"ts":   {MimeType: "application/typescript", Category: CategoryScript, Extension: "ts"},
	"json": {MimeType: "application/json", Category: CategoryData, Extension: "json"},
	"jpg":  {MimeType: "image/jpeg", Category: CategoryImage, Extension: "jpg"},
	"jpeg": {MimeType: "image/jpeg", Category: CategoryImage, Extension: "jpeg"},
	"png":  {MimeType: "image/png", Category: CategoryImage, Extension: "png"},
	"gif":  {MimeType: "image/gif", Category: CategoryImage, Extension: "gif"},
	"ico":  {MimeType: "image/x-icon", Category: CategoryImage, Extension: "ico"},
	"svg":  {MimeType: "image/svg+xml", Category: CategoryImage, Extension: "svg"},
	"webp": {MimeType: "image/webp", Category: CategoryImage, Extension: "webp"},
	"avif": {MimeType: "image/avif", Category: CategoryImage, Extension: "avif"},
	"mp4":  {MimeType: "video/mp4", Category: CategoryVideo, Extension: "mp4"},
	"webm": {MimeType: "video/webm", Category: CategoryData, Extension: "webm"},
	"ogg":  {MimeType: "video/ogg", Category: CategoryData, Extension: "ogg"},
	"mp3":  {MimeType: "audio/mp3", Category: CategoryAudio, Extension: "mp3"},
	"wav":  {MimeType: "audio/wav", Category: CategoryAudio, Extension: "wav"},
}

// Classify returns the descriptor for a file extension. The second return is
// false for unrecognized extensions, which callers must treat as "not an
// uploadable asset".
func Classify(extension string) (Descriptor, bool) {
	d, ok := supported[strings.ToLower(strings.TrimSpace(extension))]
	return d, ok
}

// HTML is the entry document descriptor.
var HTML = supported["html"]
