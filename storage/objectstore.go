package storage

import (
	"crypto/sha1"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// External object store configuration via environment variables:
// OBJECT_STORE_BASE_URL, OBJECT_STORE_API_KEY, OBJECT_STORE_API_SECRET
//
// The store accepts signed form uploads: clients POST the file together with
// {key, content_type, expires, api_key, signature} and the store verifies the
// SHA-1 signature server-side. Reads go through signed, expiring URLs.

func InitializeObjectStore() {
	if !objectStoreConfigured() {
		log.Println("Warning: object store not configured, attachment uploads will be rejected")
		return
	}
	log.Println("Object store initialized:", os.Getenv("OBJECT_STORE_BASE_URL"))
}

func objectStoreConfigured() bool {
	return os.Getenv("OBJECT_STORE_BASE_URL") != "" &&
		os.Getenv("OBJECT_STORE_API_KEY") != "" &&
		os.Getenv("OBJECT_STORE_API_SECRET") != ""
}

// ErrObjectStoreUnavailable reports a missing/unreachable store configuration.
type ErrObjectStoreUnavailable struct{}

func (ErrObjectStoreUnavailable) Error() string { return "object store is not configured" }

// UploadGrant is a time-boxed permission to upload one object. It is bound to
// the exact storage key and content type; the store rejects mismatches.
type UploadGrant struct {
	StorageKey  string    `json:"storageKey"`
	UploadURL   string    `json:"uploadURL"`
	APIKey      string    `json:"apiKey"`
	ContentType string    `json:"contentType"`
	Expires     int64     `json:"expires"`
	Signature   string    `json:"signature"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func SignUpload(key, mimeType string, ttl time.Duration) (*UploadGrant, error) {
	if !objectStoreConfigured() {
		return nil, ErrObjectStoreUnavailable{}
	}
	expiresAt := time.Now().Add(ttl)
	expires := expiresAt.Unix()
	return &UploadGrant{
		StorageKey:  key,
		UploadURL:   strings.TrimRight(os.Getenv("OBJECT_STORE_BASE_URL"), "/") + "/upload",
		APIKey:      os.Getenv("OBJECT_STORE_API_KEY"),
		ContentType: mimeType,
		Expires:     expires,
		Signature:   signParams(key, mimeType, expires),
		ExpiresAt:   expiresAt,
	}, nil
}

// SignedViewURL returns a single-purpose read URL for the object at key.
func SignedViewURL(key string, ttl time.Duration) (string, error) {
	if !objectStoreConfigured() {
		return "", ErrObjectStoreUnavailable{}
	}
	expires := time.Now().Add(ttl).Unix()
	base := strings.TrimRight(os.Getenv("OBJECT_STORE_BASE_URL"), "/")
	q := url.Values{}
	q.Set("expires", fmt.Sprintf("%d", expires))
	q.Set("api_key", os.Getenv("OBJECT_STORE_API_KEY"))
	q.Set("signature", signParams(key, "", expires))
	return base + "/" + key + "?" + q.Encode(), nil
}

func signParams(key, contentType string, expires int64) string {
	secret := os.Getenv("OBJECT_STORE_API_SECRET")
	payload := fmt.Sprintf("content_type=%s&expires=%d&key=%s%s", contentType, expires, key, secret)
	return fmt.Sprintf("%x", sha1.Sum([]byte(payload)))
}

// DeleteObject removes the object at key. Best-effort: callers proceed with
// their metadata delete whether or not the store delete succeeds.
func DeleteObject(key string) bool {
	if !objectStoreConfigured() {
		log.Println("object store not configured, skipping delete of", key)
		return false
	}
	expires := time.Now().Add(time.Minute).Unix()
	form := url.Values{}
	form.Set("key", key)
	form.Set("expires", fmt.Sprintf("%d", expires))
	form.Set("api_key", os.Getenv("OBJECT_STORE_API_KEY"))
	form.Set("signature", signParams(key, "", expires))

	endpoint := strings.TrimRight(os.Getenv("OBJECT_STORE_BASE_URL"), "/") + "/delete"
	req, err := http.NewRequest("POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		log.Printf("object delete request build failed for %s: %v", key, err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Printf("object delete failed for %s: %v", key, err)
		return false
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		log.Printf("object delete for %s returned status %d", key, res.StatusCode)
		return false
	}
	return true
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFileName strips path separators and unsafe characters so the
// client-supplied name is usable inside a storage key.
func SanitizeFileName(name string) string {
	name = name[strings.LastIndexByte(name, '/')+1:]
	name = name[strings.LastIndexByte(name, '\\')+1:]
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "file"
	}
	if len(name) > 128 {
		name = name[len(name)-128:]
	}
	return name
}

// BuildStorageKey namespaces an upload by uploader and month with a
// collision-resistant suffix:
// {folder}/{userID}/{yyyy}/{mm}/{suffix}-{sanitized-filename}
func BuildStorageKey(userID uint, folder, fileName string) string {
	if folder == "" {
		folder = "uploads"
	}
	now := time.Now().UTC()
	suffix := uuid.NewString()[:8]
	return fmt.Sprintf("%s/%d/%04d/%02d/%s-%s",
		folder, userID, now.Year(), int(now.Month()), suffix, SanitizeFileName(fileName))
}
