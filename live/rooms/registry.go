// rooms は接続中クライアントの大会別ルーム管理。
// 全操作はミューテックスで保護され、複数のコネクションgoroutineから安全に呼べる。
package rooms

import (
	"sync"

	"lbserver/models"
)

type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*models.Client]bool
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*models.Client]bool)}
}

// Join はクライアントを大会ルームへ所属させる。
// 既に別ルームに居た場合は暗黙に退出させる(同時所属は高々1ルーム)。
func (r *Registry) Join(client *models.Client, competitionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client.CompetitionID != "" && client.CompetitionID != competitionID {
		r.removeLocked(client, client.CompetitionID)
	}
	if r.rooms[competitionID] == nil {
		r.rooms[competitionID] = make(map[*models.Client]bool)
	}
	r.rooms[competitionID][client] = true
	client.CompetitionID = competitionID
}

// Leave はクライアントを現在のルームから退出させる。未所属なら何もしない。
func (r *Registry) Leave(client *models.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if client.CompetitionID == "" {
		return
	}
	r.removeLocked(client, client.CompetitionID)
	client.CompetitionID = ""
}

func (r *Registry) removeLocked(client *models.Client, competitionID string) {
	room, ok := r.rooms[competitionID]
	if !ok {
		return
	}
	delete(room, client)
	if len(room) == 0 {
		delete(r.rooms, competitionID)
	}
}

// MembersOf はルーム内クライアントのスナップショットを返す。
// 呼び出し側はロック外で安全にイテレートできる。
func (r *Registry) MembersOf(competitionID string) []*models.Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.rooms[competitionID]
	members := make([]*models.Client, 0, len(room))
	for client := range room {
		members = append(members, client)
	}
	return members
}

// Count は指定ルームの接続数を返す。
func (r *Registry) Count(competitionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[competitionID])
}
