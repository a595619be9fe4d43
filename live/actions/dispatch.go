// actions はクライアントから届くメッセージの振り分けと処理。
// メッセージはtypeフィールドで判別するJSONテキストフレーム。
package actions

import (
	"encoding/json"

	"go.uber.org/zap"

	"lbserver/ledger"
	"lbserver/live/broadcast"
	"lbserver/live/rooms"
	"lbserver/live/snapshot"
	"lbserver/models"
)

// Deps はアクション処理が使う依存の束。接続ハンドラから渡される。
type Deps struct {
	Ledger      *ledger.Ledger
	Snapshots   *snapshot.Builder
	Rooms       *rooms.Registry
	Broadcaster *broadcast.Broadcaster
	Logger      *zap.Logger
}

type inboundMessage struct {
	Type string `json:"type"`

	CompetitionID string   `json:"leaderboardId"`
	TeamID        string   `json:"teamId"`
	ChallengeID   string   `json:"challengeId"`
	AccessCode    string   `json:"accessCode"`
	TeamName      string   `json:"teamName"`
	Members       []string `json:"members"`
	Status        string   `json:"status"`
	HostCode      string   `json:"hostCode"`
}

// Dispatch は1フレームを解釈して対応する処理へ渡す。
// 不正なフレームはerrorイベントで応答し、接続は維持する。
func Dispatch(deps Deps, client *models.Client, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		deps.Logger.Debug("Received malformed message",
			zap.String("sessionId", client.SessionID), zap.Error(err))
		sendError(client, "INVALID_MESSAGE", "message is not valid JSON")
		return
	}

	switch msg.Type {
	case "join:leaderboard":
		handleJoin(deps, client, msg)
	case "leave:leaderboard":
		handleLeave(deps, client)
	case "complete:challenge":
		handleComplete(deps, client, msg, false)
	case "uncomplete:challenge":
		handleComplete(deps, client, msg, true)
	case "register:team":
		handleRegister(deps, client, msg)
	case "host:update_status":
		handleUpdateStatus(deps, client, msg)
	case "ping":
		client.Send(map[string]string{"type": "pong"})
	default:
		deps.Logger.Debug("Received unknown message type",
			zap.String("type", msg.Type),
			zap.String("sessionId", client.SessionID))
		sendError(client, "INVALID_MESSAGE", "unknown message type: "+msg.Type)
	}
}
