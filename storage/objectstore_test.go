package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configureTestStore(t *testing.T) {
	t.Setenv("OBJECT_STORE_BASE_URL", "https://blobs.example.com")
	t.Setenv("OBJECT_STORE_API_KEY", "key123")
	t.Setenv("OBJECT_STORE_API_SECRET", "secret456")
}

func TestSanitizeFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", SanitizeFileName("report.pdf"))
	assert.Equal(t, "passwd", SanitizeFileName("../../etc/passwd"))
	assert.Equal(t, "notes.txt", SanitizeFileName(`C:\temp\notes.txt`))
	assert.Equal(t, "a_b_c.png", SanitizeFileName("a b*c.png"))
	assert.Equal(t, "file", SanitizeFileName("///"))
}

func TestBuildStorageKey(t *testing.T) {
	key := BuildStorageKey(42, "", "photo of dog.png")
	parts := strings.Split(key, "/")
	require.Len(t, parts, 5)
	assert.Equal(t, "uploads", parts[0])
	assert.Equal(t, "42", parts[1])
	assert.True(t, strings.HasSuffix(parts[4], "-photo_of_dog.png"), "got %q", parts[4])

	// distinct calls must not collide
	assert.NotEqual(t, key, BuildStorageKey(42, "", "photo of dog.png"))

	scoped := BuildStorageKey(7, "deliverables", "final.zip")
	assert.True(t, strings.HasPrefix(scoped, "deliverables/7/"))
}

func TestSignUploadUnconfigured(t *testing.T) {
	t.Setenv("OBJECT_STORE_BASE_URL", "")
	t.Setenv("OBJECT_STORE_API_KEY", "")
	t.Setenv("OBJECT_STORE_API_SECRET", "")
	_, err := SignUpload("uploads/1/2026/08/x-file.png", "image/png", 10*time.Minute)
	require.Error(t, err)
}

func TestSignUploadGrantBoundToKeyAndType(t *testing.T) {
	configureTestStore(t)

	grant, err := SignUpload("uploads/1/2026/08/x-file.png", "image/png", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "https://blobs.example.com/upload", grant.UploadURL)
	assert.Equal(t, "key123", grant.APIKey)
	assert.Equal(t, "image/png", grant.ContentType)
	assert.True(t, grant.ExpiresAt.After(time.Now()))

	// signature is deterministic for identical params and differs when the
	// key or content type change
	same := signParams("uploads/1/2026/08/x-file.png", "image/png", grant.Expires)
	assert.Equal(t, grant.Signature, same)
	assert.NotEqual(t, grant.Signature, signParams("uploads/1/2026/08/other.png", "image/png", grant.Expires))
	assert.NotEqual(t, grant.Signature, signParams("uploads/1/2026/08/x-file.png", "application/pdf", grant.Expires))
}

func TestSignedViewURL(t *testing.T) {
	configureTestStore(t)

	u, err := SignedViewURL("uploads/1/2026/08/x-file.png", 2*time.Minute)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://blobs.example.com/uploads/1/2026/08/x-file.png?"))
	assert.Contains(t, u, "signature=")
	assert.Contains(t, u, "expires=")
}
