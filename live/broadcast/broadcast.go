// broadcast はルーム単位のイベント配信。
// ペイロードは1回だけシリアライズし、ルーム内全クライアントへ送る。
package broadcast

import (
	"encoding/json"

	"go.uber.org/zap"

	"lbserver/live/rooms"
)

type Broadcaster struct {
	rooms  *rooms.Registry
	logger *zap.Logger
}

func NewBroadcaster(r *rooms.Registry, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{rooms: r, logger: logger}
}

// Publish はイベントを大会ルームの全クライアントへ配信する。
// 送信に失敗したクライアントはログに残すのみで、切断処理は
// コネクション監視側に任せる。
func (b *Broadcaster) Publish(competitionID string, ev Event) {
	payload, err := Envelope(ev)
	if err != nil {
		b.logger.Error("Failed to encode broadcast event",
			zap.String("event", ev.Name()), zap.Error(err))
		return
	}
	for _, client := range b.rooms.MembersOf(competitionID) {
		if err := client.SendRaw(payload); err != nil {
			b.logger.Warn("Failed to send broadcast to client",
				zap.String("event", ev.Name()),
				zap.String("sessionId", client.SessionID),
				zap.Error(err))
		}
	}
}

// Envelope はイベントをtypeフィールド付きのJSONへ包む。
func Envelope(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"] = ev.Name()
	return json.Marshal(fields)
}
