package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/raon-c/re-me-sub000/internal/auth"
	"github.com/raon-c/re-me-sub000/internal/canvas"
	"github.com/raon-c/re-me-sub000/internal/database"
	"github.com/raon-c/re-me-sub000/internal/invitation"
	"github.com/raon-c/re-me-sub000/internal/metrics"
	"github.com/raon-c/re-me-sub000/internal/sanitize"
	"github.com/raon-c/re-me-sub000/internal/session"
)

// EditorWsHandler 承载编辑会话：客户端通过 WebSocket 下发区块操作，
// 服务端维护区块文档并经防抖自动保存落库，同时转发发布通知。
type EditorWsHandler struct {
	db               *gorm.DB
	redisClient      *redis.Client
	authService      *auth.AuthService
	logger           *slog.Logger
	upgrader         websocket.Upgrader
	allowedOrigins   []string
	autosaveDebounce time.Duration
}

// NewEditorWsHandler 构造编辑会话处理器。
func NewEditorWsHandler(
	db *gorm.DB,
	redisClient *redis.Client,
	authService *auth.AuthService,
	logger *slog.Logger,
	allowedOrigins []string,
	autosaveDebounce time.Duration,
) *EditorWsHandler {
	h := &EditorWsHandler{
		db:               db,
		redisClient:      redisClient,
		authService:      authService,
		logger:           logger,
		allowedOrigins:   allowedOrigins,
		autosaveDebounce: autosaveDebounce,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if len(h.allowedOrigins) == 0 {
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
	return h
}

// wsConn 序列化对同一连接的并发写入。
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

func (w *wsConn) writeRaw(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *wsConn) writeControl(messageType int, data []byte) error {
	deadline := time.Now().Add(5 * time.Second)
	return w.conn.WriteControl(messageType, data, deadline)
}

func (w *wsConn) writeClose(code int, text string) {
	_ = w.writeControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
}

type editorClientMessage struct {
	Type         string            `json:"type"`
	Token        string            `json:"token,omitempty"`
	InvitationID uint              `json:"invitation_id,omitempty"`
	Op           string            `json:"op,omitempty"`
	BlockID      string            `json:"block_id,omitempty"`
	Kind         string            `json:"kind,omitempty"`
	Visible      *bool             `json:"visible,omitempty"`
	Patch        *invitation.Patch `json:"patch,omitempty"`
}

// editorSession 把区块文档与自动保存控制器绑在一个连接上。
type editorSession struct {
	invitationID uint
	docMu        sync.Mutex
	doc          *invitation.Document
	ctrl         *session.Controller
}

func (s *editorSession) snapshot() canvas.State {
	s.docMu.Lock()
	defer s.docMu.Unlock()
	return canvas.ToState(s.doc)
}

// HandleConnection 升级连接，完成鉴权后进入编辑循环。
func (h *EditorWsHandler) HandleConnection(c *gin.Context) {
	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer rawConn.Close()
	conn := &wsConn{conn: rawConn}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))

	userID, err := h.authenticate(conn, log)
	if err != nil {
		log.Warn("websocket authentication failed", slog.Any("error", err))
		return
	}
	log = log.With(slog.Uint64("user_id", uint64(userID)))

	metrics.EditorSessionStarted()
	defer metrics.EditorSessionEnded()

	errCh := make(chan error, 2)
	go h.subscribeLoop(ctx, conn, userID, errCh, cancel, log)
	go h.editLoop(ctx, conn, userID, errCh, cancel, log)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Info("websocket connection closed", slog.Any("error", err))
		} else {
			log.Info("websocket connection closed")
		}
	}
}

// authenticate 要求首条消息为 auth，校验访问令牌。
func (h *EditorWsHandler) authenticate(conn *wsConn, log *slog.Logger) (uint, error) {
	_, message, err := conn.conn.ReadMessage()
	if err != nil {
		return 0, fmt.Errorf("read auth message: %w", err)
	}

	var msg editorClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		conn.writeClose(websocket.ClosePolicyViolation, "invalid auth payload")
		return 0, fmt.Errorf("decode auth payload: %w", err)
	}
	if msg.Type != "auth" || msg.Token == "" {
		conn.writeClose(websocket.ClosePolicyViolation, "auth required")
		return 0, errors.New("invalid auth message")
	}

	claims, err := h.authService.ValidateToken(msg.Token)
	if err != nil {
		conn.writeClose(websocket.ClosePolicyViolation, "unauthorized")
		return 0, fmt.Errorf("validate token: %w", err)
	}
	if claims.TokenType != "access" {
		conn.writeClose(websocket.ClosePolicyViolation, "access token required")
		return 0, fmt.Errorf("invalid token type: %s", claims.TokenType)
	}

	log.Info("websocket authenticated", slog.Uint64("user_id", uint64(claims.UserID)))
	return claims.UserID, nil
}

func (h *EditorWsHandler) editLoop(
	ctx context.Context,
	conn *wsConn,
	userID uint,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	var sess *editorSession
	defer func() {
		h.closeSession(sess, log)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := conn.conn.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}

		var msg editorClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			_ = conn.writeJSON(gin.H{"type": "error", "message": "invalid message"})
			continue
		}

		switch msg.Type {
		case "open":
			next, err := h.openSession(ctx, conn, userID, msg.InvitationID, log)
			if err != nil {
				_ = conn.writeJSON(gin.H{"type": "error", "message": err.Error()})
				continue
			}
			h.closeSession(sess, log)
			sess = next

		case "op":
			if sess == nil {
				_ = conn.writeJSON(gin.H{"type": "error", "message": "no open invitation"})
				continue
			}
			h.applyOp(conn, sess, msg)

		case "flush":
			if sess == nil {
				_ = conn.writeJSON(gin.H{"type": "error", "message": "no open invitation"})
				continue
			}
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := sess.ctrl.Flush(flushCtx)
			flushCancel()
			if err != nil {
				_ = conn.writeJSON(gin.H{"type": "flush_result", "ok": false, "error": err.Error(), "save_state": sess.ctrl.State()})
				continue
			}
			_ = conn.writeJSON(gin.H{"type": "flush_result", "ok": true, "save_state": sess.ctrl.State()})

		default:
			_ = conn.writeJSON(gin.H{"type": "error", "message": "unknown message type"})
		}
	}
}

// openSession 加载请柬、重建区块文档并启动自动保存控制器。
func (h *EditorWsHandler) openSession(ctx context.Context, conn *wsConn, userID, invitationID uint, log *slog.Logger) (*editorSession, error) {
	if invitationID == 0 {
		return nil, errors.New("invitation_id required")
	}

	var inv database.Invitation
	if err := h.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", invitationID, userID).
		First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("invitation not found")
		}
		log.Error("query invitation failed", slog.Any("error", err))
		return nil, errors.New("internal error")
	}

	state, err := decodeState(inv.Content)
	if err != nil {
		log.Error("decode invitation content failed", slog.Any("error", err))
		return nil, errors.New("invalid invitation content")
	}
	doc, err := canvas.FromState(state)
	if err != nil {
		log.Error("rebuild block document failed", slog.Any("error", err))
		return nil, errors.New("invalid invitation content")
	}
	doc.Normalize()

	sess := &editorSession{
		invitationID: inv.ID,
		doc:          doc,
	}

	saver := session.SaverFunc(func(saveCtx context.Context, state canvas.State) error {
		content, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode state: %w", err)
		}
		return h.db.WithContext(saveCtx).
			Model(&database.Invitation{}).
			Where("id = ?", sess.invitationID).
			Updates(map[string]any{
				"content": datatypes.JSON(content),
				"status":  "draft",
			}).Error
	})

	sess.ctrl = session.New(saver, sess.snapshot,
		session.WithDebounce(h.autosaveDebounce),
		session.WithResultHandler(func(err error) {
			metrics.RecordAutosave(err)
			if err != nil {
				log.Warn("autosave failed", slog.Any("error", err))
				_ = conn.writeJSON(gin.H{"type": "save_result", "ok": false, "error": "save failed", "save_state": sess.ctrl.State()})
				return
			}
			_ = conn.writeJSON(gin.H{"type": "save_result", "ok": true, "save_state": sess.ctrl.State()})
		}),
	)

	log.Info("editor session opened", slog.Uint64("invitation_id", uint64(inv.ID)))
	_ = conn.writeJSON(gin.H{
		"type":              "opened",
		"invitation_id":     inv.ID,
		"blocks":            doc.Blocks(),
		"incomplete_blocks": doc.Validate(),
		"save_state":        sess.ctrl.State(),
	})
	return sess, nil
}

// applyOp 在文档上执行一次区块操作并驱动自动保存。
func (h *EditorWsHandler) applyOp(conn *wsConn, sess *editorSession, msg editorClientMessage) {
	sess.docMu.Lock()
	var (
		opErr error
		block *invitation.Block
	)
	switch msg.Op {
	case "add":
		added, err := sess.doc.Add(invitation.Kind(msg.Kind))
		opErr = err
		if err == nil {
			block = &added
		}
	case "remove":
		opErr = sess.doc.Remove(msg.BlockID)
	case "update":
		if msg.Patch == nil {
			opErr = errors.New("patch required")
		} else {
			if msg.Patch.Content != nil && msg.Patch.Content.Body != nil {
				clean := sanitize.RichText(*msg.Patch.Content.Body)
				msg.Patch.Content.Body = &clean
			}
			opErr = sess.doc.Update(msg.BlockID, *msg.Patch)
		}
	case "duplicate":
		copied, err := sess.doc.Duplicate(msg.BlockID)
		opErr = err
		if err == nil {
			block = &copied
		}
	case "move_up":
		opErr = sess.doc.MoveUp(msg.BlockID)
	case "move_down":
		opErr = sess.doc.MoveDown(msg.BlockID)
	case "set_visible":
		if msg.Visible == nil {
			opErr = errors.New("visible required")
		} else {
			opErr = sess.doc.SetVisible(msg.BlockID, *msg.Visible)
		}
	default:
		opErr = fmt.Errorf("unknown op %q", msg.Op)
	}
	incomplete := sess.doc.Validate()
	sess.docMu.Unlock()

	if opErr != nil {
		_ = conn.writeJSON(gin.H{"type": "op_result", "op": msg.Op, "ok": false, "error": opErr.Error()})
		return
	}

	sess.ctrl.NoteChange()

	reply := gin.H{
		"type":              "op_result",
		"op":                msg.Op,
		"ok":                true,
		"incomplete_blocks": incomplete,
		"save_state":        sess.ctrl.State(),
	}
	if block != nil {
		reply["block"] = block
	}
	_ = conn.writeJSON(reply)
}

// closeSession 在会话结束前尽力冲刷未保存的修改。
func (h *EditorWsHandler) closeSession(sess *editorSession, log *slog.Logger) {
	if sess == nil {
		return
	}
	flushCtx, flushCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := sess.ctrl.Flush(flushCtx); err != nil && !errors.Is(err, session.ErrClosed) {
		log.Warn("final flush failed", slog.Uint64("invitation_id", uint64(sess.invitationID)), slog.Any("error", err))
	}
	flushCancel()
	sess.ctrl.Close()
	log.Info("editor session closed", slog.Uint64("invitation_id", uint64(sess.invitationID)))
}

// subscribeLoop 把发布任务的结果通知转发给客户端。
func (h *EditorWsHandler) subscribeLoop(
	ctx context.Context,
	conn *wsConn,
	userID uint,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	channel := fmt.Sprintf("user_notify:%d", userID)
	pubsub := h.redisClient.Subscribe(ctx, channel)
	defer pubsub.Close()

	log.Info("subscribed to redis channel", slog.String("channel", channel))

	ch := pubsub.Channel()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}

			log.Info("forwarding message to client", slog.String("channel", channel))
			if err := conn.writeRaw([]byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
		case <-ticker.C:
			if err := conn.writeControl(websocket.PingMessage, []byte("ping")); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}
