package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/raon-c/re-me-sub000/internal/api/middleware"
	"github.com/raon-c/re-me-sub000/internal/database"
	"github.com/raon-c/re-me-sub000/internal/storage"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]{8,64}$`)

// ViewHandler 对外提供已发布请柬的公开访问，不要求登录。
type ViewHandler struct {
	db      *gorm.DB
	storage *storage.Client
}

func NewViewHandler(db *gorm.DB, storageClient *storage.Client) *ViewHandler {
	return &ViewHandler{db: db, storage: storageClient}
}

// GET /view/:slug
// 返回发布时固化的静态页面。
func (h *ViewHandler) ViewInvitation(c *gin.Context) {
	slug := c.Param("slug")
	if !slugPattern.MatchString(slug) {
		NotFound(c, "invitation not found")
		return
	}

	ctx := c.Request.Context()
	var inv database.Invitation
	if err := h.db.WithContext(ctx).
		Where("slug = ? AND status = ?", slug, "published").
		First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "invitation not found")
			return
		}
		Internal(c, "failed to query invitation")
		return
	}
	if inv.PublishedObjectKey == "" {
		NotFound(c, "invitation not found")
		return
	}

	obj, err := h.storage.GetObject(ctx, inv.PublishedObjectKey)
	if err != nil {
		Internal(c, "failed to load published page")
		return
	}
	defer func() {
		_ = obj.Close()
	}()

	page, err := io.ReadAll(obj)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			middleware.LoggerFromContext(c).Warn("published object missing",
				"slug", slug, "object_key", inv.PublishedObjectKey)
			NotFound(c, "invitation not found")
			return
		}
		Internal(c, "failed to read published page")
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// GET /view/:slug/pdf
// 下载发布时生成的 PDF 版本。
func (h *ViewHandler) DownloadPDF(c *gin.Context) {
	slug := c.Param("slug")
	if !slugPattern.MatchString(slug) {
		NotFound(c, "invitation not found")
		return
	}

	ctx := c.Request.Context()
	var inv database.Invitation
	if err := h.db.WithContext(ctx).
		Where("slug = ? AND status = ?", slug, "published").
		First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "invitation not found")
			return
		}
		Internal(c, "failed to query invitation")
		return
	}

	pdfKey := fmt.Sprintf("published/%s/invitation.pdf", inv.Slug)
	obj, err := h.storage.GetObject(ctx, pdfKey)
	if err != nil {
		Internal(c, "failed to load pdf")
		return
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		if storage.IsNoSuchKey(err) {
			NotFound(c, "pdf not found")
			return
		}
		Internal(c, "failed to read pdf")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "invitation-"+inv.Slug+".pdf"))
	c.Data(http.StatusOK, "application/pdf", data)
}
