package actions

import (
	"lbserver/live/broadcast"
	"lbserver/models"
)

// handleRegister はソケット経由のチーム登録。
// 登録後は自動的にその大会のルームへ参加させ、部屋全体へ新チームを通知する。
func handleRegister(deps Deps, client *models.Client, msg inboundMessage) {
	if msg.AccessCode == "" || msg.TeamName == "" {
		sendError(client, "INVALID_MESSAGE", "accessCode and teamName are required")
		return
	}

	team, comp, err := deps.Ledger.RegisterTeam(msg.AccessCode, msg.TeamName, msg.Members)
	if err != nil {
		sendLedgerError(client, err)
		return
	}

	client.TeamID = team.ID
	client.Role = models.RoleTeam
	deps.Rooms.Join(client, comp.ID)

	client.Send(map[string]interface{}{
		"type":          "team:registered",
		"teamId":        team.ID,
		"teamCode":      team.TeamCode,
		"leaderboardId": comp.ID,
	})

	deps.Broadcaster.Publish(comp.ID, broadcast.TeamJoined{
		TeamID:   team.ID,
		TeamName: team.Name,
		Members:  team.Members(),
	})
	publishLeaderboard(deps, comp.ID)
}
