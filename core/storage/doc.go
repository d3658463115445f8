// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind the small Client interface the sync engine needs:
// checking bucket existence, creating buckets, checking objects with StatObject and uploading
// documents with user metadata. Both AWS S3 and self-hosted MinIO are supported.
//
// # Usage
//
//	client, err := storage.NewClient(cfg)
//	ok, err := storage.Exists(ctx, client, "cards", "cards/23/4811.jpg")
package storage
