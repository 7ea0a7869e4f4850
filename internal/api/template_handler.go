package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/raon-c/re-me-sub000/internal/database"
	"github.com/raon-c/re-me-sub000/internal/templates"
)

// TemplateHandler 负责模板相关的 API。
// 内置模板由 templates 包提供；数据库模板由 cmd/admin 播种或用户创建。
type TemplateHandler struct {
	db *gorm.DB
}

func NewTemplateHandler(db *gorm.DB) *TemplateHandler {
	return &TemplateHandler{db: db}
}

type templateListItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	PreviewImageURL string `json:"preview_image_url,omitempty"`
}

type templateDetailResponse struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Category        string            `json:"category"`
	HTML            string            `json:"html"`
	Styles          map[string]string `json:"styles,omitempty"`
	PreviewImageURL string            `json:"preview_image_url,omitempty"`
}

type createTemplateRequest struct {
	Name     string            `json:"name" binding:"required,max=255"`
	Category string            `json:"category" binding:"required"`
	HTML     string            `json:"html" binding:"required"`
	Styles   map[string]string `json:"styles"`
}

func validTemplateCategory(c string) bool {
	switch templates.Category(c) {
	case templates.CategoryClassic, templates.CategoryModern,
		templates.CategoryRomantic, templates.CategoryMinimal:
		return true
	}
	return false
}

// POST /v1/templates
// 创建用户私有模板。公开模板只能由 cmd/admin 播种。
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if !validTemplateCategory(req.Category) {
		BadRequest(c, "unknown template category")
		return
	}

	model := database.Template{
		Name:          req.Name,
		Category:      req.Category,
		HTMLStructure: req.HTML,
		UserID:        userID,
		IsPublic:      false,
	}
	if len(req.Styles) > 0 {
		raw, err := json.Marshal(req.Styles)
		if err != nil {
			Internal(c, "failed to encode template styles")
			return
		}
		model.CSSStyles = datatypes.JSON(raw)
	}

	if err := h.db.WithContext(c.Request.Context()).Create(&model).Error; err != nil {
		Internal(c, "failed to create template")
		return
	}

	c.JSON(http.StatusCreated, templateDetailResponse{
		ID:       strconv.FormatUint(uint64(model.ID), 10),
		Name:     model.Name,
		Category: model.Category,
		HTML:     model.HTMLStructure,
		Styles:   req.Styles,
	})
}

// GET /v1/templates
// 列表：内置模板 ∪ 数据库中的公开模板与用户私有模板。
// 可选 category 查询参数过滤分类。
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	category := c.Query("category")

	items := make([]templateListItem, 0, 8)
	for _, t := range templates.BuiltIn() {
		if category != "" && string(t.Category) != category {
			continue
		}
		items = append(items, templateListItem{
			ID:       t.ID,
			Name:     t.Name,
			Category: string(t.Category),
		})
	}

	query := h.db.WithContext(c.Request.Context()).
		Where("user_id = ? OR is_public = ?", userID, true)
	if category != "" {
		query = query.Where("category = ?", category)
	}

	var stored []database.Template
	if err := query.Order("updated_at DESC").Find(&stored).Error; err != nil {
		Internal(c, "failed to list templates")
		return
	}
	for _, t := range stored {
		items = append(items, templateListItem{
			ID:              strconv.FormatUint(uint64(t.ID), 10),
			Name:            t.Name,
			Category:        t.Category,
			PreviewImageURL: t.PreviewImageURL,
		})
	}

	c.JSON(http.StatusOK, items)
}

// GET /v1/templates/:id
// 详情：内置模板对所有已登录用户可见；数据库模板允许
// Owner 访问，或公开模板允许任何已登录用户访问。
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	rawID := c.Param("id")
	if tpl, ok := templates.ByID(rawID); ok {
		c.JSON(http.StatusOK, templateDetailResponse{
			ID:       tpl.ID,
			Name:     tpl.Name,
			Category: string(tpl.Category),
			HTML:     tpl.HTML,
			Styles:   tpl.Styles,
		})
		return
	}

	id, err := strconv.ParseUint(rawID, 10, 64)
	if err != nil || id == 0 {
		BadRequest(c, "invalid template id")
		return
	}

	var model database.Template
	if err := h.db.WithContext(c.Request.Context()).
		First(&model, uint(id)).Error; err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			NotFound(c, "template not found")
		default:
			Internal(c, "failed to query template")
		}
		return
	}

	if model.UserID != userID && !model.IsPublic {
		Forbidden(c, "access denied")
		return
	}

	styles := make(map[string]string)
	if len(model.CSSStyles) > 0 {
		// 样式损坏时仍返回模板本体。
		_ = json.Unmarshal(model.CSSStyles, &styles)
	}

	c.JSON(http.StatusOK, templateDetailResponse{
		ID:              strconv.FormatUint(uint64(model.ID), 10),
		Name:            model.Name,
		Category:        model.Category,
		HTML:            model.HTMLStructure,
		Styles:          styles,
		PreviewImageURL: model.PreviewImageURL,
	})
}
