package models

import "time"

// File is the sidecar metadata record for one stored file or folder.
// Path is the owner-relative folder path ("" means the owner's root);
// the triple (Owner, Path, Name) is unique among live records.
type File struct {
	ID           string    `json:"id"`
	Owner        string    `json:"owner"`
	Path         string    `json:"path"`
	Name         string    `json:"name"`
	FileType     string    `json:"type"`
	SizeBytes    int64     `json:"size"`
	MimeType     *string   `json:"mimeType,omitempty"`
	IsPublic     bool      `json:"isPublic"`
	ShareToken   *string   `json:"shareToken,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

const (
	FileTypeFile   = "file"
	FileTypeFolder = "folder"
)

// FullPath returns the owner-relative path of the entry itself,
// e.g. "Docs/Reports" for a record with Path "Docs" and Name "Reports".
func (f *File) FullPath() string {
	if f.Path == "" {
		return f.Name
	}
	return f.Path + "/" + f.Name
}
