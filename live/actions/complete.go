package actions

import (
	"time"

	"go.uber.org/zap"

	"lbserver/ledger"
	"lbserver/live/broadcast"
	"lbserver/models"
)

type ledgerResult struct {
	team        *models.Team
	title       string
	points      int
	completedAt time.Time
}

func wrapResult(r *ledger.CompletionResult) *ledgerResult {
	if r == nil {
		return nil
	}
	return &ledgerResult{
		team:        r.Team,
		title:       r.ChallengeTitle,
		points:      r.Points,
		completedAt: r.CompletedAt,
	}
}

// handleComplete は課題の完了または取り消しを処理する。
// 台帳更新の成功後に、部屋全体へ個別イベントと順位表の再送を放送し、
// 操作者本人にはackを返す。
func handleComplete(deps Deps, client *models.Client, msg inboundMessage, revert bool) {
	competitionID := msg.CompetitionID
	if competitionID == "" {
		competitionID = client.CompetitionID
	}
	teamID := msg.TeamID
	if teamID == "" {
		teamID = client.TeamID
	}
	if competitionID == "" || teamID == "" || msg.ChallengeID == "" {
		sendError(client, "INVALID_MESSAGE", "leaderboardId, teamId and challengeId are required")
		return
	}

	var err error
	var res *ledgerResult
	if revert {
		r, e := deps.Ledger.UncompleteChallenge(competitionID, teamID, msg.ChallengeID)
		res, err = wrapResult(r), e
	} else {
		r, e := deps.Ledger.CompleteChallenge(competitionID, teamID, msg.ChallengeID)
		res, err = wrapResult(r), e
	}
	if err != nil {
		sendLedgerError(client, err)
		return
	}

	if revert {
		deps.Broadcaster.Publish(competitionID, broadcast.ChallengeUncompleted{
			TeamID:         res.team.ID,
			TeamName:       res.team.Name,
			ChallengeID:    msg.ChallengeID,
			ChallengeTitle: res.title,
			Points:         res.points,
			TotalPoints:    res.team.TotalPoints,
		})
	} else {
		deps.Broadcaster.Publish(competitionID, broadcast.ChallengeCompleted{
			TeamID:         res.team.ID,
			TeamName:       res.team.Name,
			ChallengeID:    msg.ChallengeID,
			ChallengeTitle: res.title,
			Points:         res.points,
			TotalPoints:    res.team.TotalPoints,
			CompletedAt:    res.completedAt,
		})
	}
	publishLeaderboard(deps, competitionID)

	ack := "challenge:completed"
	if revert {
		ack = "challenge:uncompleted"
	}
	client.Send(map[string]interface{}{
		"type":        ack,
		"challengeId": msg.ChallengeID,
		"teamId":      res.team.ID,
		"totalPoints": res.team.TotalPoints,
	})
}

// publishLeaderboard は順位表全体を部屋へ再送する。
// 読み出しに失敗しても放送を止めるだけで、操作自体は成立している。
func publishLeaderboard(deps Deps, competitionID string) {
	ranked, err := deps.Ledger.Ranked(competitionID)
	if err != nil {
		deps.Logger.Warn("Failed to load leaderboard for broadcast",
			zap.String("competitionId", competitionID), zap.Error(err))
		return
	}
	deps.Broadcaster.Publish(competitionID, broadcast.LeaderboardUpdate{
		CompetitionID: competitionID,
		Teams:         ranked,
	})
}
