package minio

import (
	"context"
	"strings"
	"testing"
)

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{Endpoint: "localhost:9000"})
	if err == nil || !strings.Contains(err.Error(), "bucket") {
		t.Fatalf("expected bucket error, got %v", err)
	}
}

func TestNewRejectsMalformedEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{Endpoint: "http://localhost:9000/path", Bucket: "labels"})
	if err == nil {
		t.Fatalf("expected endpoint error")
	}
}
