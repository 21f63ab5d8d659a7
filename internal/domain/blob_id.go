package domain

// BlobID identifies a blob inside one repository.
// Stored objects use their object name (a UUID plus extension) as the ID.
type BlobID string

// String returns the string representation of the BlobID.
func (id BlobID) String() string {
	return string(id)
}
