package media

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const maxBaseLength = 100

// Object is an attachment received from a client.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Stored describes an attachment after it has been relayed to the media store.
type Stored struct {
	URL      string
	Key      string
	FileName string
}

// DisplayName returns the client file name without any directory components,
// or upload-<unix millis> when the client sent none.
func DisplayName(originalName string, now time.Time) string {
	name := strings.TrimSpace(originalName)
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "" || name == "." || name == "/" {
		return fmt.Sprintf("upload-%d", now.UnixMilli())
	}
	return name
}

// ObjectKey derives the storage key <folder>/note-<unix millis>-<base><.ext> for an upload.
func ObjectKey(folder, originalName string, now time.Time) string {
	name := DisplayName(originalName, now)
	extension := filepath.Ext(name)
	base := strings.TrimSuffix(name, extension)

	key := fmt.Sprintf("note-%d-%s", now.UnixMilli(), sanitize(base, maxBaseLength))
	if extension != "" && extension != "." {
		key += "." + sanitize(strings.ToLower(strings.TrimPrefix(extension, ".")), 16)
	}
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return key
	}
	return folder + "/" + key
}

func sanitize(value string, limit int) string {
	var builder strings.Builder
	lastDash := false
	for _, r := range value {
		allowed := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-'
		if allowed {
			builder.WriteRune(r)
			lastDash = r == '-'
			continue
		}
		if !lastDash {
			builder.WriteByte('-')
			lastDash = true
		}
	}
	sanitized := strings.Trim(builder.String(), "-")
	if len(sanitized) > limit {
		sanitized = sanitized[:limit]
	}
	if sanitized == "" {
		return "file"
	}
	return sanitized
}
