// Package storage holds organization documents in S3. Downloads are
// served via short-lived presigned URLs so document bytes never pass
// through the API server.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

// ObjectStore is the contract the document handlers use. S3Store is the
// real implementation; tests substitute an in-memory fake.
type ObjectStore interface {
	// Put uploads an object.
	Put(ctx context.Context, key, contentType string, body io.Reader) error

	// PresignGet returns a time-limited download URL for the object.
	PresignGet(ctx context.Context, key string, expires time.Duration) (string, error)

	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// ErrDisabled is returned by Disabled for every operation.
var ErrDisabled = errors.New("document storage is not configured")

// Disabled is the ObjectStore used when no bucket is configured. Every
// call fails with ErrDisabled; document routes stay mounted so the API
// surface is stable across deployments.
type Disabled struct{}

func (Disabled) Put(context.Context, string, string, io.Reader) error { return ErrDisabled }

func (Disabled) PresignGet(context.Context, string, time.Duration) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Delete(context.Context, string) error { return ErrDisabled }

// DocumentKey builds the object key for an organization document. The
// filename is flattened to its base name so client-supplied paths cannot
// escape the org prefix.
func DocumentKey(orgID, documentID, filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "file"
	}
	return fmt.Sprintf("orgs/%s/documents/%s/%s", orgID, documentID, base)
}
