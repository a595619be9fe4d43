package actions

import (
	"lbserver/live/broadcast"
	"lbserver/models"
)

// handleUpdateStatus はホストによる大会ステータス変更。
// ホストコードの照合は台帳側で行う。
func handleUpdateStatus(deps Deps, client *models.Client, msg inboundMessage) {
	competitionID := msg.CompetitionID
	if competitionID == "" {
		competitionID = client.CompetitionID
	}
	if competitionID == "" || msg.Status == "" {
		sendError(client, "INVALID_MESSAGE", "leaderboardId and status are required")
		return
	}

	comp, err := deps.Ledger.ChangeStatus(competitionID, msg.Status, msg.HostCode)
	if err != nil {
		sendLedgerError(client, err)
		return
	}

	client.Send(map[string]interface{}{
		"type":   "status:updated",
		"status": comp.Status,
	})
	deps.Broadcaster.Publish(competitionID, broadcast.StatusChanged{
		CompetitionID: comp.ID,
		Status:        comp.Status,
		StartedAt:     comp.StartedAt,
		EndedAt:       comp.EndedAt,
	})
}
