package archive

import "context"

// BlobStore is a content-addressed byte store.
type BlobStore interface {
	// Add stores data and returns its content address.
	Add(ctx context.Context, data []byte) (string, error)
	// Cat returns the bytes stored at address, or ErrBlobNotFound.
	Cat(ctx context.Context, address string) ([]byte, error)
	// Pin protects address from garbage collection.
	Pin(ctx context.Context, address string) error
	Ping(ctx context.Context) error
}
