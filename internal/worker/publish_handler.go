package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/raon-c/re-me-sub000/internal/canvas"
	"github.com/raon-c/re-me-sub000/internal/database"
	"github.com/raon-c/re-me-sub000/internal/errcode"
	"github.com/raon-c/re-me-sub000/internal/invitation"
	"github.com/raon-c/re-me-sub000/internal/preview"
	"github.com/raon-c/re-me-sub000/internal/render"
	"github.com/raon-c/re-me-sub000/internal/sanitize"
	"github.com/raon-c/re-me-sub000/internal/storage"
	"github.com/raon-c/re-me-sub000/internal/tasks"
	"github.com/raon-c/re-me-sub000/internal/templates"
)

const previewPresignTTL = 7 * 24 * time.Hour

// PublishTaskHandler 负责消费请柬发布任务：渲染静态页面、
// 生成预览图与 PDF，并把产物写入对象存储。
type PublishTaskHandler struct {
	db            *gorm.DB
	storage       *storage.Client
	redisClient   *redis.Client
	logger        *slog.Logger
	publicBaseURL string
}

// NewPublishTaskHandler 创建任务处理器。
func NewPublishTaskHandler(
	db *gorm.DB,
	storage *storage.Client,
	redisClient *redis.Client,
	logger *slog.Logger,
	publicBaseURL string,
) *PublishTaskHandler {
	return &PublishTaskHandler{
		db:            db,
		storage:       storage,
		redisClient:   redisClient,
		logger:        logger,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *PublishTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.InvitationPublishPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return err
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Int("invitation_id", int(payload.InvitationID)),
	)
	log.Info("Starting invitation publish task...")

	var inv database.Invitation
	if err := h.db.WithContext(ctx).First(&inv, payload.InvitationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("invitation not found, skipping task")
			return nil
		}
		log.Error("query invitation failed", slog.Any("error", err))
		return err
	}

	log = log.With(slog.Uint64("user_id", uint64(inv.UserID)))

	defer func() {
		if retErr == nil {
			return
		}
		if !isFinalAsynqAttempt(ctx) {
			return
		}

		notify := InvitationPublishNotifyMessage{
			Status:        "error",
			InvitationID:  inv.ID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     errcode.SystemError,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publishNotify(ctx, inv.UserID, notify); err != nil {
			log.Error("publish error notification failed", slog.Any("error", err))
		}
	}()

	var state canvas.State
	if err := json.Unmarshal(inv.Content, &state); err != nil {
		log.Error("unmarshal invitation content failed", slog.Any("error", err))
		return err
	}

	doc, err := canvas.FromState(state)
	if err != nil {
		log.Error("build block document failed", slog.Any("error", err))
		return err
	}
	doc.Normalize()
	sanitizeContentBlocks(doc)

	missingKeys, err := h.inlineImageBlocks(ctx, doc, inv.UserID)
	if err != nil {
		log.Error("inline image assets failed", slog.Any("error", err))
		return err
	}

	htmlStructure, styles, err := h.resolveTemplate(ctx, inv.TemplateID)
	if err != nil {
		log.Error("resolve template failed", slog.Any("error", err))
		return err
	}

	body := render.Render(htmlStructure, render.FromDocument(doc))
	page := composePage(inv.Title, body, styles)

	pageKey := fmt.Sprintf("published/%s/index.html", inv.Slug)
	pageReader := strings.NewReader(page)
	if _, err := h.storage.UploadFile(ctx, pageKey, pageReader, int64(len(page)), "text/html; charset=utf-8"); err != nil {
		log.Error("upload published page failed", slog.Any("error", err))
		return err
	}

	pdfBytes, err := preview.PDFFromHTML(page)
	if err != nil {
		log.Error("generate pdf failed", slog.Any("error", err))
		return err
	}
	pdfKey := fmt.Sprintf("published/%s/invitation.pdf", inv.Slug)
	if _, err := h.storage.UploadFile(ctx, pdfKey, bytes.NewReader(pdfBytes), int64(len(pdfBytes)), "application/pdf"); err != nil {
		log.Error("upload pdf failed", slog.Any("error", err))
		return err
	}

	update := map[string]any{
		"status":               "published",
		"published_object_key": pageKey,
	}
	if err := h.db.WithContext(ctx).Model(&inv).Updates(update).Error; err != nil {
		log.Error("update invitation failed", slog.Any("error", err))
		return err
	}

	notify := InvitationPublishNotifyMessage{
		Status:        "completed",
		InvitationID:  inv.ID,
		CorrelationID: payload.CorrelationID,
		PublicURL:     fmt.Sprintf("%s/view/%s", h.publicBaseURL, inv.Slug),
		ErrorCode:     errcode.OK,
	}
	if len(missingKeys) > 0 {
		notify.ErrorCode = errcode.ResourceMissing
		notify.ErrorMessage = "일부 이미지 리소스를 찾을 수 없어 건너뛰었습니다"
		notify.MissingKeys = missingKeys
		log.Warn("invitation published with missing assets",
			slog.Int("missing_count", len(missingKeys)),
			slog.Any("missing_keys", missingKeys),
		)
	}
	if err := h.publishNotify(ctx, inv.UserID, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	if err := h.generatePreviewImage(ctx, &inv, page); err != nil {
		log.Warn("generate invitation preview failed", slog.Any("error", err))
	}

	log.Info("Invitation publish task completed successfully.")
	return nil
}

// inlineImageBlocks 把引用用户素材的图片区块替换为 data URI，
// 使发布页面不依赖存储端的访问权限。缺失的对象会被跳过并汇报。
// sanitizeContentBlocks 在渲染前清洗正文区块的富文本，
// 公开页面不能携带用户注入的脚本。
func sanitizeContentBlocks(doc *invitation.Document) {
	for _, b := range doc.Blocks() {
		if b.Kind != invitation.KindContent || b.Content == nil {
			continue
		}
		clean := sanitize.RichText(b.Content.Body)
		if clean == b.Content.Body {
			continue
		}
		_ = doc.Update(b.ID, invitation.Patch{Content: &invitation.ContentPatch{Body: &clean}})
	}
}

func (h *PublishTaskHandler) inlineImageBlocks(ctx context.Context, doc *invitation.Document, ownerID uint) ([]string, error) {
	assetPrefix := fmt.Sprintf("user-assets/%d/", ownerID)

	var missingKeys []string
	for _, block := range doc.Blocks() {
		if block.Kind != invitation.KindImage || block.Image == nil {
			continue
		}
		objectKey := strings.TrimSpace(block.Image.URL)
		if !strings.HasPrefix(objectKey, assetPrefix) {
			continue
		}

		obj, err := h.storage.GetObject(ctx, objectKey)
		if err != nil {
			return nil, err
		}
		stat, err := obj.Stat()
		if err != nil {
			_ = obj.Close()
			if storage.IsNoSuchKey(err) {
				missingKeys = append(missingKeys, objectKey)
				continue
			}
			return nil, fmt.Errorf("stat object %q: %w", objectKey, err)
		}
		imageBytes, err := io.ReadAll(obj)
		_ = obj.Close()
		if err != nil {
			return nil, fmt.Errorf("read object %q: %w", objectKey, err)
		}

		contentType := stat.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		dataURI := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(imageBytes))
		if err := doc.Update(block.ID, invitation.Patch{
			Image: &invitation.ImagePatch{URL: &dataURI},
		}); err != nil {
			return nil, err
		}
	}
	return missingKeys, nil
}

// resolveTemplate 先查内置模板，再按数字主键回退到数据库模板。
func (h *PublishTaskHandler) resolveTemplate(ctx context.Context, templateID string) (string, map[string]string, error) {
	if tpl, ok := templates.ByID(templateID); ok {
		return tpl.HTML, tpl.Styles, nil
	}

	id, err := strconv.ParseUint(templateID, 10, 64)
	if err != nil {
		return "", nil, fmt.Errorf("unknown template %q", templateID)
	}

	var tpl database.Template
	if err := h.db.WithContext(ctx).First(&tpl, uint(id)).Error; err != nil {
		return "", nil, fmt.Errorf("query template %q: %w", templateID, err)
	}

	styles := make(map[string]string)
	if len(tpl.CSSStyles) > 0 {
		if err := json.Unmarshal(tpl.CSSStyles, &styles); err != nil {
			return "", nil, fmt.Errorf("unmarshal template styles: %w", err)
		}
	}
	return tpl.HTMLStructure, styles, nil
}

func (h *PublishTaskHandler) generatePreviewImage(ctx context.Context, inv *database.Invitation, page string) error {
	previewBytes, err := preview.ScreenshotFromHTML(page)
	if err != nil {
		return fmt.Errorf("capture preview screenshot: %w", err)
	}

	objectName := fmt.Sprintf("thumbnails/invitation/%d/preview.jpg", inv.ID)
	reader := bytes.NewReader(previewBytes)
	if _, err := h.storage.UploadFile(ctx, objectName, reader, int64(len(previewBytes)), "image/jpeg"); err != nil {
		return fmt.Errorf("upload preview image: %w", err)
	}

	presignedURL, err := h.storage.GeneratePresignedURL(ctx, objectName, previewPresignTTL)
	if err != nil {
		return fmt.Errorf("generate preview presigned url: %w", err)
	}

	if err := h.db.WithContext(ctx).Model(inv).Updates(map[string]any{
		"preview_image_url": presignedURL,
	}).Error; err != nil {
		return fmt.Errorf("update invitation preview url: %w", err)
	}

	return nil
}

func (h *PublishTaskHandler) publishNotify(ctx context.Context, userID uint, notify InvitationPublishNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := fmt.Sprintf("user_notify:%d", userID)
	if err := h.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
