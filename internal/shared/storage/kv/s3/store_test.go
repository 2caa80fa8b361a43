package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"nci-backend/internal/shared/storage/kv"
)

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "nci_analysis_v1.json", want: "nci_analysis_v1.json"},
		{name: "simple prefix", prefix: "root", key: "nci_analysis_v1.json", want: "root/nci_analysis_v1.json"},
		{name: "prefix trailing slash", prefix: "root/", key: "nci_analysis_v1.json", want: "root/nci_analysis_v1.json"},
		{name: "prefix and key slashes", prefix: "/root/", key: "/nci_analysis_v1.json", want: "root/nci_analysis_v1.json"},
		{name: "nested prefix", prefix: "root/sub", key: "nci_analysis_v1.json", want: "root/sub/nci_analysis_v1.json"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

type fakeS3 struct {
	objects map[string][]byte
	lastPut *s3.PutObjectInput
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	f.lastPut = in
	return &s3.PutObjectOutput{}, nil
}

func TestStoreRoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewWithClient(fake, "bucket", "/snapshots/", "")
	ctx := context.Background()

	if _, err := store.Get(ctx, "nci_analysis_v1"); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Put(ctx, "nci_analysis_v1", []byte("{}")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, ok := fake.objects["snapshots/nci_analysis_v1.json"]; !ok {
		t.Fatalf("unexpected keys: %v", fake.objects)
	}
	if fake.lastPut.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256 default encryption")
	}
	got, err := store.Get(ctx, "nci_analysis_v1")
	if err != nil || string(got) != "{}" {
		t.Fatalf("Get = %q, %v", got, err)
	}
}

func TestStoreUsesKMSWhenConfigured(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := NewWithClient(fake, "bucket", "", "kms-key")
	if err := store.Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if fake.lastPut.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(fake.lastPut.SSEKMSKeyId) != "kms-key" {
		t.Fatalf("expected KMS encryption, got %+v", fake.lastPut)
	}
}
