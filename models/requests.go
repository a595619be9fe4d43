package models

import "encoding/json"

// 各HTTPエンドポイントのリクエストボディ定義。
// バリデーションタグはginのShouldBindJSONで評価される。

type CreateCompetitionRequest struct {
	Name       string          `json:"name" binding:"required,min=1,max=100"`
	Challenges json.RawMessage `json:"challenges" binding:"required"`
}

type JoinCompetitionRequest struct {
	TeamName   string   `json:"teamName" binding:"required,min=1,max=50"`
	Members    []string `json:"members" binding:"required,min=1,max=20,dive,min=1,max=50"`
	AccessCode string   `json:"accessCode" binding:"required,len=6"`
}

type CompleteChallengeRequest struct {
	ChallengeID string `json:"challengeId" binding:"required"`
}

type TeamAuthRequest struct {
	TeamCode string `json:"teamCode" binding:"required"`
}

type TeamJoinRequest struct {
	TeamCode       string `json:"teamCode" binding:"required"`
	MemberName     string `json:"memberName"`
	ExistingMember string `json:"existingMember"`
	IsNewMember    *bool  `json:"isNewMember" binding:"required"`
}

type HostAuthRequest struct {
	HostCode string `json:"hostCode" binding:"required"`
}

type UpdateStatusRequest struct {
	Status   string `json:"status" binding:"required"`
	HostCode string `json:"hostCode"`
}
