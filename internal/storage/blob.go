package storage

// BlobStore resolves stored object keys to URLs a client can fetch.
// Uploads happen outside this service.
type BlobStore interface {
	SignedURL(key string) (string, error)
}
