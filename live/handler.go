// live はWebsocket接続の受け入れと各下位パッケージの束ね役。
package live

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lbserver/auth"
	"lbserver/ledger"
	"lbserver/live/actions"
	"lbserver/live/broadcast"
	"lbserver/live/connection"
	"lbserver/live/rooms"
	"lbserver/live/snapshot"
	"lbserver/models"
	"lbserver/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// CORSはHTTP層のミドルウェアで制御しているため、ここでは緩める
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub はライブ配信系の依存をまとめたもの。main.goで一度だけ組み立てる。
type Hub struct {
	Store       store.Store
	Ledger      *ledger.Ledger
	Rooms       *rooms.Registry
	Broadcaster *broadcast.Broadcaster
	Snapshots   *snapshot.Builder
	Rdb         *redis.Client
	Logger      *zap.Logger
}

func NewHub(s store.Store, l *ledger.Ledger, rdb *redis.Client, logger *zap.Logger) *Hub {
	registry := rooms.NewRegistry()
	return &Hub{
		Store:       s,
		Ledger:      l,
		Rooms:       registry,
		Broadcaster: broadcast.NewBroadcaster(registry, logger),
		Snapshots:   snapshot.NewBuilder(s, logger),
		Rdb:         rdb,
		Logger:      logger,
	}
}

func (h *Hub) deps() actions.Deps {
	return actions.Deps{
		Ledger:      h.Ledger,
		Snapshots:   h.Snapshots,
		Rooms:       h.Rooms,
		Broadcaster: h.Broadcaster,
		Logger:      h.Logger,
	}
}

// HandleConnections はWebsocketへのアップグレードと接続ライフサイクル管理。
// tokenクエリがあればJWTからチーム・ロールを復元し、sessionクエリが
// あればRedis上のセッションを引き継ぐ(IDはローテーションされる)。
func (h *Hub) HandleConnections(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	sessionID, restored, err := connection.RestoreSessionID(ctx, h.Rdb, c.Query("session"))
	cancel()
	if err != nil {
		h.Logger.Error("Failed to establish session", zap.Error(err))
		conn.Close()
		return
	}

	client := &models.Client{Conn: conn, SessionID: sessionID, Role: models.RoleViewer}
	if token := c.Query("token"); token != "" {
		if claims, err := auth.ParseSessionToken(token); err == nil {
			client.Role = claims.Role
			client.TeamID = claims.TeamID
		} else {
			h.Logger.Debug("Ignoring invalid session token", zap.Error(err))
		}
	}

	h.Logger.Info("Websocket connection established",
		zap.String("sessionId", sessionID),
		zap.Bool("restored", restored),
		zap.String("role", client.Role))

	client.Send(map[string]string{"type": "session", "sessionId": sessionID})

	done := make(chan struct{})
	go connection.MaintainConnection(client, h.Logger, done)
	h.readLoop(client, done)
}

// readLoop は受信フレームを捌き、切断時に在室状態を片付ける。
func (h *Hub) readLoop(client *models.Client, done chan struct{}) {
	defer func() {
		close(done)
		h.disconnect(client)
	}()

	client.Conn.SetReadDeadline(time.Now().Add(connection.ReadTimeout))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(connection.ReadTimeout))
	})

	for {
		_, raw, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Logger.Warn("Websocket read error",
					zap.String("sessionId", client.SessionID), zap.Error(err))
			}
			return
		}
		client.Conn.SetReadDeadline(time.Now().Add(connection.ReadTimeout))
		actions.Dispatch(h.deps(), client, raw)
	}
}

func (h *Hub) disconnect(client *models.Client) {
	competitionID := client.CompetitionID
	h.Rooms.Leave(client)
	client.Conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := connection.DeleteSessionID(ctx, h.Rdb, client.SessionID); err != nil {
		h.Logger.Debug("Failed to delete session", zap.Error(err))
	}

	if competitionID != "" {
		h.Broadcaster.Publish(competitionID, broadcast.UserDisconnected{
			SessionID: client.SessionID,
			Count:     h.Rooms.Count(competitionID),
		})
	}
	h.Logger.Info("Websocket connection closed",
		zap.String("sessionId", client.SessionID))
}
