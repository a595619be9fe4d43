package models

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Websocketクライアントを定義。1接続につき1インスタンス。
// CompetitionIDは参加中のルーム（未参加なら空文字）。
// ルーム所属の変更はRoomRegistry経由でのみ行うこと。
type Client struct {
	Conn          *websocket.Conn
	SessionID     string
	CompetitionID string
	TeamID        string
	Role          string // "team"・"host"・"viewer"

	// gorilla/websocketは同時書き込みを許さないため、
	// ブロードキャストとPing送信の書き込みを直列化する。
	writeMu sync.Mutex
}

// Send はJSONエンコードしたメッセージを送信します。
func (c *Client) Send(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendRaw(payload)
}

// SendRaw はエンコード済みのペイロードをそのまま送信します。
func (c *Client) SendRaw(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, payload)
}

// Ping は制御フレームを送信します。Send同様に直列化する。
func (c *Client) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(websocket.PingMessage, nil)
}
