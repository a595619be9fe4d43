package actions

import (
	"errors"

	"lbserver/ledger"
	"lbserver/models"
	"lbserver/store"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEvent struct {
	Type  string    `json:"type"`
	Error errorBody `json:"error"`
}

func sendError(client *models.Client, code, message string) {
	client.Send(errorEvent{Type: "error", Error: errorBody{Code: code, Message: message}})
}

// sendLedgerError は業務エラーをワイヤ上のエラーコードへ写像して返信する。
func sendLedgerError(client *models.Client, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		sendError(client, "NOT_FOUND", "resource not found")
	case errors.Is(err, store.ErrNameConflict):
		sendError(client, "NAME_TAKEN", "team name already taken")
	case errors.Is(err, ledger.ErrCompetitionEnded):
		sendError(client, "COMPETITION_ENDED", "competition has ended")
	case errors.Is(err, ledger.ErrChallengeNotFound):
		sendError(client, "CHALLENGE_NOT_FOUND", "challenge not found")
	case errors.Is(err, ledger.ErrAlreadyCompleted):
		sendError(client, "ALREADY_COMPLETED", "challenge already completed")
	case errors.Is(err, ledger.ErrNotCompleted):
		sendError(client, "NOT_COMPLETED", "challenge is not completed")
	case errors.Is(err, ledger.ErrForbidden):
		sendError(client, "FORBIDDEN", "operation not permitted")
	case errors.Is(err, ledger.ErrNotAcceptingTeams):
		sendError(client, "NOT_ACCEPTING_TEAMS", "competition is not accepting teams")
	case errors.Is(err, ledger.ErrInvalidStatus):
		sendError(client, "INVALID_STATUS", "invalid status value")
	default:
		sendError(client, "INTERNAL", "internal server error")
	}
}
