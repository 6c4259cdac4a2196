package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tapcard/internal/controller"
	"github.com/tapcard/internal/links"
	"github.com/tapcard/internal/service"
	"github.com/tapcard/internal/theme"
)

const (
	liveWriteWait      = 10 * time.Second
	livePongWait       = 60 * time.Second
	livePingPeriod     = (livePongWait * 9) / 10
	liveMaxMessageSize = 64 << 10
	liveSendBuffer     = 256
)

// 客户端发来的消息类型
const (
	msgSaveDesign       = "save_design"
	msgResetDesign      = "reset_design"
	msgRefresh          = "refresh"
	msgSaveLink         = "save_link"
	msgDeleteLink       = "delete_link"
	msgMoveLink         = "move_link"
	msgAddConnection    = "add_connection"
	msgUpdateConnection = "update_connection"
	msgRemoveConnection = "remove_connection"
	msgIsConnected      = "is_connected"
)

// 服务端推送的消息类型
const (
	msgSettings    = "settings"
	msgTheme       = "theme"
	msgLinks       = "links"
	msgConnections = "connections"
	msgAck         = "ack"
	msgError       = "error"
)

type liveRequest struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type liveMessage struct {
	Type      string            `json:"type"`
	RequestID string            `json:"request_id,omitempty"`
	Data      interface{}       `json:"data,omitempty"`
	Status    int               `json:"status,omitempty"`
	Error     string            `json:"error,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

type settingsPayload struct {
	Settings theme.Settings `json:"settings"`
	Loading  bool           `json:"loading"`
	Saving   bool           `json:"saving"`
}

type themePayload struct {
	Scope      string            `json:"scope"`
	Stylesheet string            `json:"stylesheet"`
	Variables  map[string]string `json:"variables"`
}

type linkRequest struct {
	ID    string `json:"id"`
	Delta int    `json:"delta"`
}

type connectionRequest struct {
	ID        uint    `json:"id"`
	ProfileID uint    `json:"profile_id"`
	Note      *string `json:"note"`
	Tag       *string `json:"tag"`
}

// LiveSession 升级为 websocket，推送外观、链接与收藏的实时状态并处理编辑指令
func (a *API) LiveSession(c *gin.Context) {
	userID := currentUserID(c)

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	session := a.newLiveSession(conn, userID)
	go session.writePump()
	session.start()
	session.readPump()
}

// liveSession 为一个编辑器连接，持有三个控制器与一个主题实例
type liveSession struct {
	conn   *websocket.Conn
	userID uint
	send   chan []byte

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	settings    *controller.SettingsController
	links       *controller.LinksController
	connections *controller.ConnectionsController
	mount       *theme.Mount
}

func (a *API) newLiveSession(conn *websocket.Conn, userID uint) *liveSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &liveSession{
		conn:        conn,
		userID:      userID,
		send:        make(chan []byte, liveSendBuffer),
		ctx:         ctx,
		cancel:      cancel,
		settings:    controller.NewSettingsController(a.designs, a.broker, userID),
		links:       controller.NewLinksController(a.links, a.broker, userID),
		connections: controller.NewConnectionsController(a.connections, a.broker, userID),
		mount:       a.themes.Mount(theme.Defaults()),
	}
}

func (s *liveSession) start() {
	s.settings.OnChange(s.pushSettings)
	s.links.OnChange(func(items []links.Link) {
		s.push(liveMessage{Type: msgLinks, Data: items})
	})
	s.connections.OnChange(func(items []service.ConnectionView) {
		s.push(liveMessage{Type: msgConnections, Data: items})
	})

	s.pushSettings(s.settings.Start(s.ctx))
	if err := s.links.Start(s.ctx); err != nil {
		s.pushError("", err)
	}
	if err := s.connections.Start(s.ctx); err != nil {
		s.pushError("", err)
	}
}

// close 可重复调用，卸载主题实例并取消全部订阅
func (s *liveSession) close() {
	s.once.Do(func() {
		s.cancel()
		s.settings.Close()
		s.links.Close()
		s.connections.Close()
		s.mount.Unmount()
		s.conn.Close()
	})
}

func (s *liveSession) readPump() {
	defer func() {
		s.close()
		slog.Info("live session closed", "user_id", s.userID)
	}()

	s.conn.SetReadLimit(liveMaxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(livePongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(livePongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("unexpected websocket close", "user_id", s.userID, "error", err)
			}
			return
		}

		var req liveRequest
		if err := json.Unmarshal(message, &req); err != nil {
			s.push(liveMessage{Type: msgError, Status: http.StatusBadRequest, Error: "消息格式错误"})
			continue
		}
		s.dispatch(req)
	}
}

func (s *liveSession) writePump() {
	ticker := time.NewTicker(livePingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("write live message failed", "user_id", s.userID, "error", err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.ctx.Done():
			s.conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *liveSession) dispatch(req liveRequest) {
	var err error

	switch req.Type {
	case msgSaveDesign:
		var patch theme.Patch
		if err = decodeLiveData(req.Data, &patch); err == nil {
			err = s.settings.Save(s.ctx, patch)
		}

	case msgResetDesign:
		err = s.settings.Reset(s.ctx)

	case msgRefresh:
		s.pushSettings(s.settings.Refresh(s.ctx))
		if err = s.links.Refresh(s.ctx); err == nil {
			err = s.connections.Refresh(s.ctx)
		}

	case msgSaveLink:
		var input service.LinkInput
		if err = decodeLiveData(req.Data, &input); err == nil {
			_, err = s.links.Save(s.ctx, input)
		}

	case msgDeleteLink:
		var body linkRequest
		if err = decodeLiveData(req.Data, &body); err == nil {
			err = s.links.Delete(s.ctx, body.ID)
		}

	case msgMoveLink:
		var body linkRequest
		if err = decodeLiveData(req.Data, &body); err == nil {
			moved := s.links.Move(body.ID, body.Delta)
			s.push(liveMessage{Type: msgAck, RequestID: req.RequestID, Data: gin.H{"moved": moved}})
			return
		}

	case msgAddConnection:
		var body connectionRequest
		if err = decodeLiveData(req.Data, &body); err == nil {
			var already bool
			if already, err = s.connections.Add(s.ctx, body.ProfileID); err == nil {
				s.push(liveMessage{Type: msgAck, RequestID: req.RequestID, Data: gin.H{"already_saved": already}})
				return
			}
		}

	case msgUpdateConnection:
		var body connectionRequest
		if err = decodeLiveData(req.Data, &body); err == nil {
			err = s.connections.Update(s.ctx, body.ID, service.ConnectionInput{Note: body.Note, Tag: body.Tag})
		}

	case msgRemoveConnection:
		var body connectionRequest
		if err = decodeLiveData(req.Data, &body); err == nil {
			err = s.connections.Remove(s.ctx, body.ID)
		}

	case msgIsConnected:
		var body connectionRequest
		if err = decodeLiveData(req.Data, &body); err == nil {
			s.push(liveMessage{
				Type:      msgIsConnected,
				RequestID: req.RequestID,
				Data:      gin.H{"profile_id": body.ProfileID, "connected": s.connections.IsConnected(body.ProfileID)},
			})
			return
		}

	default:
		s.push(liveMessage{Type: msgError, RequestID: req.RequestID, Status: http.StatusBadRequest, Error: "未知的消息类型"})
		return
	}

	if err != nil {
		s.pushError(req.RequestID, err)
		return
	}
	s.push(liveMessage{Type: msgAck, RequestID: req.RequestID})
}

func (s *liveSession) pushSettings(settings theme.Settings) {
	s.mount.Update(settings)
	s.push(liveMessage{Type: msgSettings, Data: settingsPayload{
		Settings: settings,
		Loading:  s.settings.Loading(),
		Saving:   s.settings.Saving(),
	}})
	s.push(liveMessage{Type: msgTheme, Data: themePayload{
		Scope:      s.mount.ID,
		Stylesheet: s.mount.Stylesheet(),
		Variables:  theme.Resolve(settings).VariablesMap(),
	}})
}

func (s *liveSession) pushError(requestID string, err error) {
	status, body := serviceErrorBody(err)
	msg := liveMessage{Type: msgError, RequestID: requestID, Status: status}
	if text, ok := body["error"].(string); ok {
		msg.Error = text
	}
	if fields, ok := body["fields"].(map[string]string); ok {
		msg.Fields = fields
	}
	if status >= http.StatusInternalServerError {
		slog.Warn("live request failed", "user_id", s.userID, "error", err)
	}
	s.push(msg)
}

// push 不阻塞，连接关闭或缓冲区已满时丢弃
func (s *liveSession) push(msg liveMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("encode live message failed", "type", msg.Type, "error", err)
		return
	}

	select {
	case <-s.ctx.Done():
	case s.send <- payload:
	default:
		slog.Warn("live send buffer full, dropping message", "user_id", s.userID, "type", msg.Type)
	}
}

func decodeLiveData(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return service.NewValidationError(map[string]string{"data": "缺少消息内容"})
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return service.NewValidationError(map[string]string{"data": "消息内容格式错误"})
	}
	return nil
}
