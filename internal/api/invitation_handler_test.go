package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/raon-c/re-me-sub000/internal/canvas"
	"github.com/raon-c/re-me-sub000/internal/database"
)

type fakePublishedStorage struct {
	deletedPrefixes []string
}

func (s *fakePublishedStorage) DeletePrefix(_ context.Context, prefix string) error {
	s.deletedPrefixes = append(s.deletedPrefixes, prefix)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&database.User{},
		&database.Invitation{},
		&database.Template{},
		&database.Asset{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newJSONRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func newAuthedContext(w *httptest.ResponseRecorder, req *http.Request, userID uint) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Set("userID", userID)
	return c
}

func seedInvitation(t *testing.T, db *gorm.DB, userID uint, state canvas.State, status string) database.Invitation {
	t.Helper()
	content, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	inv := database.Invitation{
		Title:      "우리 결혼합니다",
		Slug:       fmt.Sprintf("testslug%04d", userID),
		Content:    content,
		Status:     status,
		TemplateID: "classic-01",
		UserID:     userID,
	}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("seed invitation: %v", err)
	}
	return inv
}

func completeState() canvas.State {
	return canvas.State{
		Info: canvas.WeddingInfo{
			GroomName:    "김민준",
			BrideName:    "이서연",
			WeddingDate:  "2026-10-24",
			WeddingTime:  "오후 2시",
			VenueName:    "더채플팰리스",
			VenueAddress: "서울시 강남구 테헤란로 1",
		},
	}
}

func TestCreateInvitation_SeedsTemplateContent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewInvitationHandler(db, nil, &fakePublishedStorage{})

	req := newJSONRequest(t, http.MethodPost, "/v1/invitations", gin.H{
		"title":       "우리 결혼합니다",
		"template_id": "classic-01",
	})
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 1)

	h.CreateInvitation(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var resp invitationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "draft" {
		t.Fatalf("expected draft status, got %q", resp.Status)
	}
	if resp.Slug == "" {
		t.Fatalf("expected non-empty slug")
	}
	if len(resp.IncompleteBlocks) != 0 {
		t.Fatalf("template-seeded invitation should be complete, incomplete=%v", resp.IncompleteBlocks)
	}

	var state canvas.State
	if err := json.Unmarshal(resp.Content, &state); err != nil {
		t.Fatalf("decode content: %v", err)
	}
	if state.Info.GroomName == "" || state.Info.VenueName == "" {
		t.Fatalf("expected seeded wedding info, got %+v", state.Info)
	}
}

func TestCreateInvitation_UnknownTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewInvitationHandler(db, nil, &fakePublishedStorage{})

	req := newJSONRequest(t, http.MethodPost, "/v1/invitations", gin.H{
		"title":       "우리 결혼합니다",
		"template_id": "no-such-template",
	})
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 1)

	h.CreateInvitation(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateContent_RevertsPublishedToDraft(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewInvitationHandler(db, nil, &fakePublishedStorage{})
	inv := seedInvitation(t, db, 1, completeState(), "published")

	req := newJSONRequest(t, http.MethodPut, "/v1/invitations/"+strconv.Itoa(int(inv.ID))+"/content", completeState())
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 1)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(inv.ID))}}

	h.UpdateContent(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.Invitation
	if err := db.First(&reloaded, inv.ID).Error; err != nil {
		t.Fatalf("reload invitation: %v", err)
	}
	if reloaded.Status != "draft" {
		t.Fatalf("expected status draft after content update, got %q", reloaded.Status)
	}
}

func TestCreateInvitation_ResolvesStoredTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewInvitationHandler(db, nil, &fakePublishedStorage{})

	tpl := database.Template{
		Name:          "사용자 모던",
		Category:      "modern",
		HTMLStructure: `<section>{{groomName}}</section>`,
		CSSStyles:     datatypes.JSON(`{"accent_color":"#222222"}`),
		UserID:        1,
	}
	if err := db.Create(&tpl).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	req := newJSONRequest(t, http.MethodPost, "/v1/invitations", gin.H{
		"title":       "우리 결혼합니다",
		"template_id": strconv.Itoa(int(tpl.ID)),
	})
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 1)

	h.CreateInvitation(c)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d body=%s", w.Code, w.Body.String())
	}

	var resp invitationResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TemplateID != strconv.Itoa(int(tpl.ID)) {
		t.Fatalf("expected stored template id, got %q", resp.TemplateID)
	}
}

func TestCreateInvitation_RejectsForeignPrivateTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewInvitationHandler(db, nil, &fakePublishedStorage{})

	tpl := database.Template{
		Name:          "남의 비공개 템플릿",
		Category:      "modern",
		HTMLStructure: "<section></section>",
		UserID:        2,
	}
	if err := db.Create(&tpl).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	req := newJSONRequest(t, http.MethodPost, "/v1/invitations", gin.H{
		"title":       "우리 결혼합니다",
		"template_id": strconv.Itoa(int(tpl.ID)),
	})
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 1)

	h.CreateInvitation(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for foreign private template, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestUpdateContent_IncompleteRequiresDraftFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewInvitationHandler(db, nil, &fakePublishedStorage{})
	inv := seedInvitation(t, db, 1, completeState(), "draft")

	// 场地缺少地址，转换出的 location 区块不完整。
	state := canvas.State{Info: canvas.WeddingInfo{VenueName: "더채플팰리스"}}
	target := "/v1/invitations/" + strconv.Itoa(int(inv.ID)) + "/content"

	req := newJSONRequest(t, http.MethodPut, target, state)
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 1)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(inv.ID))}}

	h.UpdateContent(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without draft flag, got %d body=%s", w.Code, w.Body.String())
	}
	var rejected struct {
		ErrorCode        int      `json:"error_code"`
		IncompleteBlocks []string `json:"incomplete_blocks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rejected); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if rejected.ErrorCode != 4001 || len(rejected.IncompleteBlocks) == 0 {
		t.Fatalf("expected validation failure with block ids, got %+v", rejected)
	}

	// draft=true 放行中途存稿。
	req = newJSONRequest(t, http.MethodPut, target+"?draft=true", state)
	w = httptest.NewRecorder()
	c = newAuthedContext(w, req, 1)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(inv.ID))}}

	h.UpdateContent(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with draft flag, got %d body=%s", w.Code, w.Body.String())
	}
	var accepted struct {
		Status           string   `json:"status"`
		IncompleteBlocks []string `json:"incomplete_blocks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &accepted); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if accepted.Status != "draft" || len(accepted.IncompleteBlocks) == 0 {
		t.Fatalf("draft save must report incomplete blocks, got %+v", accepted)
	}
}

func TestUpdateContent_SanitizesRichTextElements(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewInvitationHandler(db, nil, &fakePublishedStorage{})
	inv := seedInvitation(t, db, 1, completeState(), "draft")

	state := completeState()
	state.Elements = []canvas.Element{
		{ID: "greet", Type: canvas.ElementText, Content: `<p>모시는 글</p><script>alert(1)</script>`},
	}

	req := newJSONRequest(t, http.MethodPut, "/v1/invitations/"+strconv.Itoa(int(inv.ID))+"/content", state)
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 1)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(inv.ID))}}

	h.UpdateContent(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%s", w.Code, w.Body.String())
	}

	var reloaded database.Invitation
	if err := db.First(&reloaded, inv.ID).Error; err != nil {
		t.Fatalf("reload invitation: %v", err)
	}
	var stored canvas.State
	if err := json.Unmarshal(reloaded.Content, &stored); err != nil {
		t.Fatalf("decode stored content: %v", err)
	}
	if len(stored.Elements) != 1 {
		t.Fatalf("expected one element, got %d", len(stored.Elements))
	}
	if strings.Contains(stored.Elements[0].Content, "<script") {
		t.Fatalf("script must be stripped before persisting, got %q", stored.Elements[0].Content)
	}
	if !strings.Contains(stored.Elements[0].Content, "모시는 글") {
		t.Fatalf("legitimate markup must survive sanitizing, got %q", stored.Elements[0].Content)
	}
}

func TestUpdateContent_RejectsDuplicateElementIDs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewInvitationHandler(db, nil, &fakePublishedStorage{})
	inv := seedInvitation(t, db, 1, completeState(), "draft")

	state := completeState()
	state.Elements = []canvas.Element{
		{ID: "dup", Type: canvas.ElementText, Content: "a"},
		{ID: "dup", Type: canvas.ElementText, Content: "b"},
	}

	req := newJSONRequest(t, http.MethodPut, "/v1/invitations/"+strconv.Itoa(int(inv.ID))+"/content", state)
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 1)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(inv.ID))}}

	h.UpdateContent(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}
}

func TestPublishInvitation_RejectsIncompleteBlocks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewInvitationHandler(db, nil, &fakePublishedStorage{})

	// 场地缺少地址，转换出的 location 区块不完整。
	state := canvas.State{Info: canvas.WeddingInfo{VenueName: "더채플팰리스"}}
	inv := seedInvitation(t, db, 1, state, "draft")

	req := httptest.NewRequest(http.MethodPost, "/v1/invitations/"+strconv.Itoa(int(inv.ID))+"/publish", nil)
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 1)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(inv.ID))}}

	h.PublishInvitation(c)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d body=%s", w.Code, w.Body.String())
	}

	var resp struct {
		ErrorCode        int      `json:"error_code"`
		IncompleteBlocks []string `json:"incomplete_blocks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ErrorCode != 4001 {
		t.Fatalf("expected validation error code, got %d", resp.ErrorCode)
	}
	if len(resp.IncompleteBlocks) == 0 {
		t.Fatalf("expected incomplete block ids in response")
	}
}

func TestGetInvitation_ScopedToOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	h := NewInvitationHandler(db, nil, &fakePublishedStorage{})
	inv := seedInvitation(t, db, 1, completeState(), "draft")

	req := httptest.NewRequest(http.MethodGet, "/v1/invitations/"+strconv.Itoa(int(inv.ID)), nil)
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 2)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(inv.ID))}}

	h.GetInvitation(c)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign invitation, got %d", w.Code)
	}
}

func TestDeleteInvitation_CleansPublishedObjects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	storage := &fakePublishedStorage{}
	h := NewInvitationHandler(db, nil, storage)
	inv := seedInvitation(t, db, 1, completeState(), "published")

	req := httptest.NewRequest(http.MethodDelete, "/v1/invitations/"+strconv.Itoa(int(inv.ID)), nil)
	w := httptest.NewRecorder()
	c := newAuthedContext(w, req, 1)
	c.Params = gin.Params{{Key: "id", Value: strconv.Itoa(int(inv.ID))}}

	h.DeleteInvitation(c)
	c.Writer.WriteHeaderNow() // 直接调用 handler 时需手动刷出 204

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d body=%s", w.Code, w.Body.String())
	}

	wantPrefix := "published/" + inv.Slug + "/"
	found := false
	for _, p := range storage.deletedPrefixes {
		if p == wantPrefix {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected cleanup of %q, got %v", wantPrefix, storage.deletedPrefixes)
	}

	var count int64
	if err := db.Model(&database.Invitation{}).Where("id = ?", inv.ID).Count(&count).Error; err != nil {
		t.Fatalf("count invitations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected invitation removed, count=%d", count)
	}
}
