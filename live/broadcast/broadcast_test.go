package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lbserver/live/rooms"
	"lbserver/models"
	"lbserver/store"
)

func TestEnvelopeInjectsType(t *testing.T) {
	payload, err := Envelope(ChallengeCompleted{
		TeamID:      "t1",
		TeamName:    "testers",
		ChallengeID: "web-1",
		Points:      100,
		TotalPoints: 100,
		CompletedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["type"] != "team:completed" {
		t.Errorf("type = %v, want team:completed", got["type"])
	}
	if got["teamId"] != "t1" || got["points"] != float64(100) {
		t.Errorf("fields lost: %v", got)
	}
}

func TestEnvelopeLeaderboardUpdate(t *testing.T) {
	payload, err := Envelope(LeaderboardUpdate{
		CompetitionID: "comp-1",
		Teams: []store.RankedTeam{
			{Rank: 1, ID: "t1", Name: "alpha", TotalPoints: 50},
		},
	})
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	var got map[string]interface{}
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["leaderboardId"] != "comp-1" {
		t.Errorf("leaderboardId = %v", got["leaderboardId"])
	}
	teams, ok := got["teams"].([]interface{})
	if !ok || len(teams) != 1 {
		t.Fatalf("teams = %v", got["teams"])
	}
}

// Publishの配信経路を実ソケットで確認する。
func TestPublishReachesRoomMembers(t *testing.T) {
	registry := rooms.NewRegistry()
	b := NewBroadcaster(registry, zap.NewNop())

	upgrader := websocket.Upgrader{}
	joined := make(chan *models.Client, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := &models.Client{Conn: conn}
		registry.Join(client, "comp-1")
		joined <- client
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial %d: %v", i, err)
		}
		defer conn.Close()
		conns = append(conns, conn)
		<-joined
	}

	b.Publish("comp-1", TeamJoined{TeamID: "t9", TeamName: "latecomers"})

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		var got map[string]interface{}
		if err := json.Unmarshal(msg, &got); err != nil {
			t.Fatalf("unmarshal %d: %v", i, err)
		}
		if got["type"] != "team:joined" || got["teamId"] != "t9" {
			t.Errorf("conn %d got %v", i, got)
		}
	}
}
