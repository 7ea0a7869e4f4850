package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/raon-c/re-me-sub000/internal/api/middleware"
	"github.com/raon-c/re-me-sub000/internal/canvas"
	"github.com/raon-c/re-me-sub000/internal/database"
	"github.com/raon-c/re-me-sub000/internal/errcode"
	"github.com/raon-c/re-me-sub000/internal/sanitize"
	"github.com/raon-c/re-me-sub000/internal/tasks"
	"github.com/raon-c/re-me-sub000/internal/templates"
)

// publishedStorage 抽象发布产物的清理操作，便于测试替换。
type publishedStorage interface {
	DeletePrefix(ctx context.Context, prefix string) error
}

// InvitationHandler 负责处理与请柬相关的 API 请求。
type InvitationHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	storage     publishedStorage
}

// NewInvitationHandler 构造 InvitationHandler。
func NewInvitationHandler(db *gorm.DB, asynqClient *asynq.Client, storageClient publishedStorage) *InvitationHandler {
	return &InvitationHandler{
		db:          db,
		asynqClient: asynqClient,
		storage:     storageClient,
	}
}

var (
	errInvalidInvitationID = errors.New("invalid invitation id")
	errUnknownTemplate     = errors.New("unknown template")
)

type createInvitationRequest struct {
	Title      string              `json:"title" binding:"required,max=255"`
	TemplateID string              `json:"template_id" binding:"required"`
	Info       *canvas.WeddingInfo `json:"info"`
}

type invitationListItem struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	Slug            string    `json:"slug"`
	Status          string    `json:"status"`
	TemplateID      string    `json:"template_id"`
	PreviewImageURL string    `json:"preview_image_url,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type invitationResponse struct {
	ID               uint           `json:"id"`
	Title            string         `json:"title"`
	Slug             string         `json:"slug"`
	Status           string         `json:"status"`
	TemplateID       string         `json:"template_id"`
	Content          datatypes.JSON `json:"content"`
	PreviewImageURL  string         `json:"preview_image_url,omitempty"`
	IncompleteBlocks []string       `json:"incomplete_blocks,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func newInvitationResponse(inv database.Invitation) invitationResponse {
	resp := invitationResponse{
		ID:              inv.ID,
		Title:           inv.Title,
		Slug:            inv.Slug,
		Status:          inv.Status,
		TemplateID:      inv.TemplateID,
		Content:         inv.Content,
		PreviewImageURL: inv.PreviewImageURL,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}
	if state, err := decodeState(inv.Content); err == nil {
		if doc, err := canvas.FromState(state); err == nil {
			resp.IncompleteBlocks = doc.Validate()
		}
	}
	return resp
}

// CreateInvitation 基于模板创建一份新请柬，内容由模板区块播种。
func (h *InvitationHandler) CreateInvitation(c *gin.Context) {
	var req createInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	tpl, err := h.resolveTemplate(c.Request.Context(), req.TemplateID, userID)
	if err != nil {
		if errors.Is(err, errUnknownTemplate) {
			BadRequest(c, "unknown template id")
		} else {
			Internal(c, "failed to resolve template")
		}
		return
	}

	doc, err := canvas.FromTemplate(tpl, req.Info)
	if err != nil {
		Internal(c, "failed to seed invitation content")
		return
	}
	content, err := json.Marshal(canvas.ToState(doc))
	if err != nil {
		Internal(c, "failed to encode invitation content")
		return
	}

	inv := database.Invitation{
		Title:      req.Title,
		Slug:       newSlug(),
		Content:    content,
		Status:     "draft",
		TemplateID: req.TemplateID,
		UserID:     userID,
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Create(&inv).Error; err != nil {
		Internal(c, "failed to create invitation")
		return
	}

	c.JSON(http.StatusCreated, newInvitationResponse(inv))
}

// ListInvitations 列出用户全部请柬。
func (h *InvitationHandler) ListInvitations(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	var invitations []database.Invitation
	if err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&invitations).Error; err != nil {
		Internal(c, "failed to list invitations")
		return
	}

	items := make([]invitationListItem, 0, len(invitations))
	for _, inv := range invitations {
		items = append(items, invitationListItem{
			ID:              inv.ID,
			Title:           inv.Title,
			Slug:            inv.Slug,
			Status:          inv.Status,
			TemplateID:      inv.TemplateID,
			PreviewImageURL: inv.PreviewImageURL,
			UpdatedAt:       inv.UpdatedAt,
		})
	}

	c.JSON(http.StatusOK, items)
}

// GetInvitation 返回指定 ID 的请柬。
func (h *InvitationHandler) GetInvitation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	inv, err := h.getInvitationForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.replyLookupError(c, err)
		return
	}

	c.JSON(http.StatusOK, newInvitationResponse(*inv))
}

// UpdateContent 覆盖请柬内容（旧画布格式）。
// 已发布的请柬被修改后会回到 draft 状态，需重新发布。
func (h *InvitationHandler) UpdateContent(c *gin.Context) {
	var state canvas.State
	if err := c.ShouldBindJSON(&state); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	// 富文本入库前先清洗，公开页面渲染依赖这里的数据。
	for i := range state.Elements {
		if state.Elements[i].Type == canvas.ElementText {
			state.Elements[i].Content = sanitize.RichText(state.Elements[i].Content)
		}
	}
	state.Info.Greeting = sanitize.RichText(state.Info.Greeting)

	// 结构校验：内容必须能构成区块文档。
	doc, err := canvas.FromState(state)
	if err != nil {
		BadRequest(c, fmt.Sprintf("invalid content: %v", err))
		return
	}

	// 完整性校验：不完整的可见区块默认拒绝保存，
	// 显式声明 draft=true 时放行（编辑器中途存稿）。
	incomplete := doc.Validate()
	if len(incomplete) > 0 && c.Query("draft") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invitation has incomplete blocks",
			"error_code":        errcode.ValidationFailed,
			"incomplete_blocks": incomplete,
		})
		return
	}

	inv, err := h.getInvitationForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.replyLookupError(c, err)
		return
	}

	content, err := json.Marshal(state)
	if err != nil {
		Internal(c, "failed to encode invitation content")
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Model(inv).Updates(map[string]any{
		"content": datatypes.JSON(content),
		"status":  "draft",
	}).Error; err != nil {
		Internal(c, "failed to update invitation")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            "draft",
		"incomplete_blocks": incomplete,
	})
}

// PublishInvitation 校验内容完整性后投递发布任务。
func (h *InvitationHandler) PublishInvitation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	inv, err := h.getInvitationForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.replyLookupError(c, err)
		return
	}

	state, err := decodeState(inv.Content)
	if err != nil {
		Internal(c, "failed to decode invitation content")
		return
	}
	doc, err := canvas.FromState(state)
	if err != nil {
		Internal(c, "failed to build block document")
		return
	}
	if incomplete := doc.Validate(); len(incomplete) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":             "invitation has incomplete blocks",
			"error_code":        errcode.ValidationFailed,
			"incomplete_blocks": incomplete,
		})
		return
	}

	correlationID := middleware.GetCorrelationID(c)
	task, err := tasks.NewInvitationPublishTask(inv.ID, correlationID)
	if err != nil {
		Internal(c, "failed to build publish task")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.asynqClient.EnqueueContext(ctx, task); err != nil {
		Internal(c, "failed to enqueue publish task")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":         "queued",
		"correlation_id": correlationID,
	})
}

// DeleteInvitation 删除请柬并清理其发布产物。
func (h *InvitationHandler) DeleteInvitation(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	inv, err := h.getInvitationForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.replyLookupError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := h.db.WithContext(ctx).Delete(&database.Invitation{}, inv.ID).Error; err != nil {
		Internal(c, "failed to delete invitation")
		return
	}

	// 发布产物与缩略图尽力清理，失败不影响删除结果。
	logger := middleware.LoggerFromContext(c)
	if err := h.storage.DeletePrefix(ctx, fmt.Sprintf("published/%s/", inv.Slug)); err != nil {
		logger.Warn("cleanup published objects failed", "error", err)
	}
	if err := h.storage.DeletePrefix(ctx, fmt.Sprintf("thumbnails/invitation/%d/", inv.ID)); err != nil {
		logger.Warn("cleanup thumbnails failed", "error", err)
	}

	c.Status(http.StatusNoContent)
}

// resolveTemplate 先查内置目录，再按数字主键回退到数据库模板。
// 数据库模板只有公开模板或本人私有模板可用于播种。
func (h *InvitationHandler) resolveTemplate(ctx context.Context, templateID string, userID uint) (templates.Template, error) {
	if tpl, ok := templates.ByID(templateID); ok {
		return tpl, nil
	}

	id, err := strconv.ParseUint(templateID, 10, 64)
	if err != nil || id == 0 {
		return templates.Template{}, errUnknownTemplate
	}

	var model database.Template
	if err := h.db.WithContext(ctx).First(&model, uint(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return templates.Template{}, errUnknownTemplate
		}
		return templates.Template{}, err
	}
	if model.UserID != userID && !model.IsPublic {
		return templates.Template{}, errUnknownTemplate
	}

	styles := make(map[string]string)
	if len(model.CSSStyles) > 0 {
		if err := json.Unmarshal(model.CSSStyles, &styles); err != nil {
			return templates.Template{}, fmt.Errorf("unmarshal template styles: %w", err)
		}
	}
	return templates.Template{
		ID:       templateID,
		Name:     model.Name,
		Category: templates.Category(model.Category),
		HTML:     model.HTMLStructure,
		Styles:   styles,
	}, nil
}

func (h *InvitationHandler) getInvitationForUser(ctx context.Context, rawID string, userID uint) (*database.Invitation, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id == 0 {
		return nil, errInvalidInvitationID
	}

	var inv database.Invitation
	if err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", uint(id), userID).
		First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (h *InvitationHandler) replyLookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errInvalidInvitationID):
		BadRequest(c, "invalid invitation id")
	case errors.Is(err, gorm.ErrRecordNotFound):
		NotFound(c, "invitation not found")
	default:
		Internal(c, "failed to query invitation")
	}
}

func decodeState(content datatypes.JSON) (canvas.State, error) {
	var state canvas.State
	if len(content) == 0 {
		return state, nil
	}
	err := json.Unmarshal(content, &state)
	return state, err
}

// newSlug 生成公开访问路径使用的短标识。
func newSlug() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
