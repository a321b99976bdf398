package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const gcsAddressPrefix = "sha256-"

// GCSStore keeps archive records in a Cloud Storage bucket. Objects are named
// by the sha256 of their bytes, so the object name is the content address.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore creates a GCSStore. credentialsFile may be empty to use
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: "archive/"}, nil
}

func (s *GCSStore) object(address string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + address)
}

func (s *GCSStore) Add(ctx context.Context, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	address := gcsAddressPrefix + hex.EncodeToString(sum[:])

	w := s.object(address).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ObjectAttrs.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		// Identical bytes are already stored under this address.
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return address, nil
		}
		return "", fmt.Errorf("failed to close writer: %w", err)
	}
	return address, nil
}

func (s *GCSStore) Cat(ctx context.Context, address string) ([]byte, error) {
	if !strings.HasPrefix(address, gcsAddressPrefix) {
		return nil, fmt.Errorf("%w: %s is not a bucket address", ErrBlobNotFound, address)
	}
	r, err := s.object(address).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, address)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	defer r.Close()
	return io.ReadAll(r)
}

// Pin places a temporary hold so the object survives bucket lifecycle rules.
func (s *GCSStore) Pin(ctx context.Context, address string) error {
	if _, err := s.object(address).Update(ctx, storage.ObjectAttrsToUpdate{TemporaryHold: true}); err != nil {
		return fmt.Errorf("failed to hold object: %w", err)
	}
	return nil
}

func (s *GCSStore) Ping(ctx context.Context) error {
	_, err := s.client.Bucket(s.bucket).Attrs(ctx)
	return err
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
