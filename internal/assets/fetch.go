package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// maxAssetSize caps a single fetched asset.
const maxAssetSize = 256 << 20

// Fetcher retrieves the raw bytes behind a locator.
type Fetcher interface {
	Fetch(ctx context.Context, locator string, onProgress ProgressFunc) ([]byte, error)
}

func readAll(r io.Reader, total int64, onProgress ProgressFunc) ([]byte, error) {
	pr := newProgressReader(io.LimitReader(r, maxAssetSize+1), total, onProgress)
	data, err := io.ReadAll(pr)
	if err != nil {
		return nil, err
	}
	if len(data) > maxAssetSize {
		return nil, fmt.Errorf("asset exceeds %d bytes", maxAssetSize)
	}
	return data, nil
}

// HTTPFetcher fetches http and https locators.
type HTTPFetcher struct {
	Client *http.Client
}

// Fetch performs a GET and streams the body through the progress reader.
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string, onProgress ProgressFunc) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return readAll(resp.Body, resp.ContentLength, onProgress)
}

// FileFetcher reads file:// locators and plain paths.
type FileFetcher struct{}

// Fetch reads the file through the progress reader.
func (FileFetcher) Fetch(ctx context.Context, locator string, onProgress ProgressFunc) ([]byte, error) {
	p := locator
	if strings.HasPrefix(locator, "file://") {
		u, err := url.Parse(locator)
		if err != nil {
			return nil, err
		}
		p = u.Path
	}
	file, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	total := int64(-1)
	if info, err := file.Stat(); err == nil {
		total = info.Size()
	}
	return readAll(file, total, onProgress)
}

// S3Fetcher reads s3://bucket/key locators.
type S3Fetcher struct {
	Client s3iface.S3API
}

// NewS3Fetcher creates a fetcher using the default AWS credential chain.
// endpoint is optional and selects path-style addressing, as used by
// S3-compatible stores.
func NewS3Fetcher(region, endpoint string) (*S3Fetcher, error) {
	cfg := &aws.Config{}
	if region != "" {
		cfg.Region = aws.String(region)
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return &S3Fetcher{Client: s3.New(sess)}, nil
}

// Fetch downloads the object, using its content length as the progress total.
func (f *S3Fetcher) Fetch(ctx context.Context, locator string, onProgress ProgressFunc) ([]byte, error) {
	bucket, key, err := parseS3Locator(locator)
	if err != nil {
		return nil, err
	}
	out, err := f.Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	total := int64(-1)
	if out.ContentLength != nil {
		total = aws.Int64Value(out.ContentLength)
	}
	return readAll(out.Body, total, onProgress)
}

func parseS3Locator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", err
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 locator %q", locator)
	}
	return bucket, key, nil
}
