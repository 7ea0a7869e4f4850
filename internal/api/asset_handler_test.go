package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"

	"github.com/raon-c/re-me-sub000/internal/database"
	"github.com/raon-c/re-me-sub000/internal/storage"
)

type fakeStorage struct {
	uploaded map[string][]byte
	deleted  []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{}, nil
}

func (s *fakeStorage) GeneratePresignedURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://example.invalid/" + objectKey, nil
}

func (s *fakeStorage) ListObjects(_ context.Context, prefix string, _ int) ([]storage.ObjectMeta, error) {
	var metas []storage.ObjectMeta
	for key, data := range s.uploaded {
		if strings.HasPrefix(key, prefix) {
			metas = append(metas, storage.ObjectMeta{Key: key, Size: int64(len(data))})
		}
	}
	return metas, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

func newMultipartUpload(t *testing.T, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadAsset_StoresObjectAndRecord(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	fake := newFakeStorage()
	h := NewAssetHandler(db, fake, testLogger(), "")

	body, contentType := newMultipartUpload(t, "photo.jpg", "image/jpeg", []byte("jpeg-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/v1/assets/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 7)

	h.UploadAsset(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}
	if len(fake.uploaded) != 1 {
		t.Fatalf("expected one uploaded object, got %d", len(fake.uploaded))
	}
	for key := range fake.uploaded {
		if !strings.HasPrefix(key, "user-assets/7/") || !strings.HasSuffix(key, ".jpg") {
			t.Fatalf("unexpected object key %q", key)
		}
	}

	var count int64
	if err := db.Model(&database.Asset{}).Where("user_id = ?", 7).Count(&count).Error; err != nil {
		t.Fatalf("count assets: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one asset record, got %d", count)
	}
}

func TestUploadAsset_RejectsUnsupportedType(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	fake := newFakeStorage()
	h := NewAssetHandler(db, fake, testLogger(), "")

	body, contentType := newMultipartUpload(t, "notes.txt", "text/plain", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/v1/assets/upload", body)
	req.Header.Set("Content-Type", contentType)

	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 7)

	h.UploadAsset(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
	if len(fake.uploaded) != 0 {
		t.Fatalf("unsupported upload must not reach storage")
	}
}

func TestGetAssetURL_RejectsForeignKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewAssetHandler(db, newFakeStorage(), testLogger(), "")

	req := httptest.NewRequest(http.MethodGet, "/v1/assets/view?key=user-assets/1/photo.jpg", nil)
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 2)

	h.GetAssetURL(c)

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestDeleteAsset_RemovesObjectAndRecord(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	fake := newFakeStorage()
	h := NewAssetHandler(db, fake, testLogger(), "")

	objectKey := "user-assets/3/keep.jpg"
	fake.uploaded[objectKey] = []byte("jpeg-bytes")
	if err := db.Create(&database.Asset{UserID: 3, ObjectKey: objectKey}).Error; err != nil {
		t.Fatalf("seed asset: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/v1/assets?key="+objectKey, nil)
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 3)

	h.DeleteAsset(c)
	c.Writer.WriteHeaderNow() // 直接调用 handler 时需手动刷出 204

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d body=%s", w.Code, w.Body.String())
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != objectKey {
		t.Fatalf("expected object deleted, got %v", fake.deleted)
	}

	var count int64
	if err := db.Model(&database.Asset{}).Where("object_key = ?", objectKey).Count(&count).Error; err != nil {
		t.Fatalf("count assets: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected asset record removed, count=%d", count)
	}
}
