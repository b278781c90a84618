package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

type COSConfig struct {
	SecretID  string `yaml:"secret_id"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Prefix    string `yaml:"prefix"`
}

func (c COSConfig) configured() bool {
	return strings.TrimSpace(c.SecretID) != "" &&
		strings.TrimSpace(c.SecretKey) != "" &&
		strings.TrimSpace(c.Bucket) != ""
}

// COSStore keeps bodies in a Tencent Cloud COS bucket.
type COSStore struct {
	client *cos.Client
	prefix string
}

func NewCOSStore(cfg COSConfig) (*COSStore, error) {
	if !cfg.configured() {
		return nil, ErrCOSNotConfigured
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "ap-hongkong"
	}
	bucketURL, err := url.Parse(fmt.Sprintf("https://%s.cos.%s.myqcloud.com", strings.TrimSpace(cfg.Bucket), region))
	if err != nil {
		return nil, err
	}
	return newCOSStoreWithURL(bucketURL, cfg), nil
}

func newCOSStoreWithURL(bucketURL *url.URL, cfg COSConfig) *COSStore {
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  strings.TrimSpace(cfg.SecretID),
			SecretKey: strings.TrimSpace(cfg.SecretKey),
		},
	})
	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	return &COSStore{client: client, prefix: prefix}
}

func (s *COSStore) objectName(key string) (string, error) {
	if !validKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return s.prefix + key, nil
}

func (s *COSStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	name, err := s.objectName(key)
	if err != nil {
		return err
	}
	var opt *cos.ObjectPutOptions
	if contentType != "" {
		opt = &cos.ObjectPutOptions{
			ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
		}
	}
	if _, err := s.client.Object.Put(ctx, name, bytes.NewReader(body), opt); err != nil {
		return fmt.Errorf("cos put %s: %w", name, err)
	}
	return nil
}

func (s *COSStore) Get(ctx context.Context, key string) ([]byte, error) {
	name, err := s.objectName(key)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Object.Get(ctx, name, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("cos get %s: %w", name, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (s *COSStore) Delete(ctx context.Context, key string) error {
	name, err := s.objectName(key)
	if err != nil {
		return err
	}
	if _, err := s.client.Object.Delete(ctx, name); err != nil && !cos.IsNotFoundError(err) {
		return fmt.Errorf("cos delete %s: %w", name, err)
	}
	return nil
}
