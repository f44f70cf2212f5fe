package drive

import "time"

// FolderMimeType identifies folder records in the storage provider.
const FolderMimeType = "application/vnd.google-apps.folder"

// File is an opaque file record in the remote storage account.
type File struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	ModifiedTime time.Time `json:"modifiedTime"`
	Parents      []string  `json:"parents,omitempty"`
	Owners       []string  `json:"owners,omitempty"`
	Trashed      bool      `json:"trashed,omitempty"`
}

// IsFolder reports whether the record is a folder.
func (f File) IsFolder() bool {
	return f.MimeType == FolderMimeType
}

// Owner returns the primary owner, if any.
func (f File) Owner() string {
	if len(f.Owners) == 0 {
		return ""
	}
	return f.Owners[0]
}

// Query selects a page of files.
type Query struct {
	// Q is the provider's query/filter expression, e.g.
	// "mimeType = 'application/vnd.google-apps.folder' and trashed = false".
	Q         string
	PageToken string
	PageSize  int
}

// FileList is one page of results plus the continuation token for the next.
type FileList struct {
	Files         []File `json:"files"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}
