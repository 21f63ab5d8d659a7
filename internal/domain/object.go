package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrObjectTooLarge is returned when an object exceeds the storage size limit.
	ErrObjectTooLarge = errors.New("object too large")
	// ErrInvalidObjectName is returned for bucket or object names that could escape storage.
	ErrInvalidObjectName = errors.New("invalid object name")
	// ErrObjectExists is returned when an object name is already taken in its bucket.
	ErrObjectExists = errors.New("object already exists")
	// ErrImageTypeNotSupported is returned when an image cannot be decoded or encoded.
	ErrImageTypeNotSupported = errors.New("image type not supported")
)

// ObjectMeta describes an object stored in a bucket.
type ObjectMeta struct {
	Bucket      string    `json:"bucket"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewObjectMetaFromBlob decodes ObjectMeta from a JSON blob.
func NewObjectMetaFromBlob(blob *Blob) (ObjectMeta, error) {
	var meta ObjectMeta
	if err := json.Unmarshal(blob.Bytes(), &meta); err != nil {
		return ObjectMeta{}, fmt.Errorf("unmarshal object meta: %w", err)
	}

	return meta, nil
}

// AsBlob encodes the metadata as a JSON blob keyed by the object name.
func (meta ObjectMeta) AsBlob() (*Blob, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal object meta: %w", err)
	}

	return NewBlob(BlobID(meta.Name), data), nil
}

// Object is a stored object's content together with its metadata.
type Object struct {
	Meta ObjectMeta
	Data []byte
}
