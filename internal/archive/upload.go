package archive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

const defaultUploadRetries = 4

// UploadConfig locates the destination blob. ServiceURL is the account
// endpoint (https://<account>.blob.core.windows.net); when it carries a SAS
// token no credential lookup happens.
type UploadConfig struct {
	ServiceURL string
	Container  string
	Blob       string
	MaxRetries int32
}

func (c UploadConfig) validate() error {
	if c.ServiceURL == "" {
		return fmt.Errorf("service URL is required")
	}
	if c.Container == "" {
		return fmt.Errorf("container name is required")
	}
	if c.Blob == "" {
		return fmt.Errorf("blob name is required")
	}
	return nil
}

// Upload streams r to the configured blob and returns the blob URL.
// Without a SAS token in the service URL, credentials come from the default
// Azure chain (environment, workload identity, managed identity, CLI).
func Upload(ctx context.Context, cfg UploadConfig, r io.Reader) (string, error) {
	if err := cfg.validate(); err != nil {
		return "", err
	}

	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = defaultUploadRetries
	}
	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: retries},
		},
	}

	var (
		client *azblob.Client
		err    error
	)
	if hasSASToken(cfg.ServiceURL) {
		client, err = azblob.NewClientWithNoCredential(cfg.ServiceURL, opts)
	} else {
		cred, credErr := azidentity.NewDefaultAzureCredential(nil)
		if credErr != nil {
			return "", fmt.Errorf("azure credential: %w", credErr)
		}
		client, err = azblob.NewClient(cfg.ServiceURL, cred, opts)
	}
	if err != nil {
		return "", fmt.Errorf("blob client: %w", err)
	}

	if _, err := client.UploadStream(ctx, cfg.Container, cfg.Blob, r, nil); err != nil {
		return "", fmt.Errorf("upload %s/%s: %w", cfg.Container, cfg.Blob, err)
	}

	return blobURL(cfg.ServiceURL, cfg.Container, cfg.Blob), nil
}

func hasSASToken(serviceURL string) bool {
	return strings.Contains(serviceURL, "?")
}

// blobURL is the token-free address of the uploaded blob.
func blobURL(serviceURL, container, blob string) string {
	base := serviceURL
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, "/") + "/" + container + "/" + blob
}
