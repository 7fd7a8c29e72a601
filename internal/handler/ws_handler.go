package handler

import (
	"net/http"
	"time"

	"dapp-core/internal/model"
	"dapp-core/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	// 慢客户端最多积压的快照数，超过后丢弃最旧的
	snapshotBuffer = 16
)

// SnapshotSource streams full UI snapshots.
type SnapshotSource interface {
	Snapshot() model.Snapshot
	Subscribe(buffer int) (<-chan model.Snapshot, func())
}

type WSHandler struct {
	source   SnapshotSource
	upgrader websocket.Upgrader
}

func NewWSHandler(source SnapshotSource) *WSHandler {
	return &WSHandler{
		source: source,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 本地客户端，不做 Origin 校验
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Stream 推送快照：连接建立后先发当前快照，之后每次变化发一次
func (h *WSHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	snapshots, cancel := h.source.Subscribe(snapshotBuffer)
	defer cancel()

	// 读循环只用来处理 pong 和关闭
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case snap, ok := <-snapshots:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(snap); err != nil {
				logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
