// Package azure stores media in Azure Blob Storage. Downloads are served from
// SAS URLs signed with the account's shared key.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/launchpal/launchpal/internal/config"
	"github.com/launchpal/launchpal/internal/media"
	"github.com/launchpal/launchpal/pkg/checksum"
)

func init() {
	media.Register("azure", func(cfg *config.Config) (media.Store, error) {
		return New(&cfg.Media.Azure)
	})
}

// Store implements media.Store on a blob container.
type Store struct {
	client      *azblob.Client
	credential  *azblob.SharedKeyCredential
	container   string
	accountName string
}

// New creates an Azure Blob store authenticated with a shared key.
func New(cfg *config.AzureStorageConfig) (*Store, error) {
	if cfg.AccountName == "" {
		return nil, fmt.Errorf("azure storage account name is required")
	}
	if cfg.AccountKey == "" {
		return nil, fmt.Errorf("azure storage account key is required")
	}
	if cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure storage container name is required")
	}

	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob client: %w", err)
	}

	return &Store{
		client:      client,
		credential:  credential,
		container:   cfg.ContainerName,
		accountName: cfg.AccountName,
	}, nil
}

// Upload buffers the blob to hash it, then uploads it as a block blob.
func (s *Store) Upload(ctx context.Context, path string, r io.Reader, _ int64) (*media.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read data: %w", err)
	}
	sha := checksum.Bytes(data)
	blobClient := s.client.ServiceClient().NewContainerClient(s.container).NewBlockBlobClient(path)
	_, err = blobClient.Upload(ctx, streaming.NopCloser(bytes.NewReader(data)), &blockblob.UploadOptions{
		Metadata: map[string]*string{"sha256": &sha},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}
	return &media.Object{Path: path, Size: int64(len(data)), Checksum: sha}, nil
}

// Open streams the blob.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, path, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("%w: %s", media.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to download from Azure Blob: %w", err)
	}
	return resp.Body, nil
}

// Delete removes the blob. Missing blobs are ignored.
func (s *Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, path, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound) {
		return fmt.Errorf("failed to delete from Azure Blob: %w", err)
	}
	return nil
}

// URL returns a read-only SAS URL valid for ttl.
func (s *Store) URL(_ context.Context, path string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	params, err := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     now.Add(-5 * time.Minute),
		ExpiryTime:    now.Add(ttl),
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: s.container,
		BlobName:      path,
	}.SignWithSharedKey(s.credential)
	if err != nil {
		return "", fmt.Errorf("failed to generate SAS token: %w", err)
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net/%s/%s?%s",
		s.accountName, s.container, (&url.URL{Path: path}).EscapedPath(), params.Encode()), nil
}

// Exists fetches the blob's properties.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(path)
	if _, err := blobClient.GetProperties(ctx, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}
	return true, nil
}
