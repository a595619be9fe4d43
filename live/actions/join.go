package actions

import (
	"go.uber.org/zap"

	"lbserver/live/broadcast"
	"lbserver/models"
)

// handleJoin はルーム参加と初期スナップショットの送信を行う。
// 参加順は「登録してからスナップショット構築」。この順なら参加と
// 同時に起きた得点変動は放送かスナップショットの少なくとも片方で届く。
func handleJoin(deps Deps, client *models.Client, msg inboundMessage) {
	if msg.CompetitionID == "" {
		sendError(client, "INVALID_MESSAGE", "leaderboardId is required")
		return
	}

	deps.Rooms.Join(client, msg.CompetitionID)

	snap, err := deps.Snapshots.Build(msg.CompetitionID)
	if err != nil {
		deps.Rooms.Leave(client)
		sendLedgerError(client, err)
		return
	}
	payload, err := broadcast.Envelope(snap)
	if err != nil {
		deps.Logger.Error("Failed to encode snapshot", zap.Error(err))
		deps.Rooms.Leave(client)
		sendError(client, "INTERNAL", "internal server error")
		return
	}
	if err := client.SendRaw(payload); err != nil {
		deps.Logger.Warn("Failed to send initial snapshot",
			zap.String("sessionId", client.SessionID), zap.Error(err))
		return
	}

	deps.Logger.Info("Client joined leaderboard room",
		zap.String("sessionId", client.SessionID),
		zap.String("competitionId", msg.CompetitionID))
	deps.Broadcaster.Publish(msg.CompetitionID, broadcast.UserConnected{
		SessionID: client.SessionID,
		Count:     deps.Rooms.Count(msg.CompetitionID),
	})
}

func handleLeave(deps Deps, client *models.Client) {
	competitionID := client.CompetitionID
	if competitionID == "" {
		return
	}
	deps.Rooms.Leave(client)
	deps.Logger.Info("Client left leaderboard room",
		zap.String("sessionId", client.SessionID),
		zap.String("competitionId", competitionID))
	deps.Broadcaster.Publish(competitionID, broadcast.UserDisconnected{
		SessionID: client.SessionID,
		Count:     deps.Rooms.Count(competitionID),
	})
}
