// wsclient はリーダーボードサーバへ接続するクライアント側の監視役。
// 切断を検知すると指数バックオフで再接続し、参加中だったルームへ
// 自動で入り直す。
package wsclient

import (
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 接続状態。遷移は Disconnected→Connecting→Connected→(Join後)Joined。
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	}
	return "disconnected"
}

// Message は受信した1フレーム。Typeで判別し、必要ならRawをデコードする。
type Message struct {
	Type string
	Raw  json.RawMessage
}

var (
	ErrClosed       = errors.New("wsclient: supervisor closed")
	ErrNotConnected = errors.New("wsclient: not connected")
)

const (
	reconnectInitialInterval = time.Second
	reconnectMaxInterval     = 5 * time.Second
	maxReconnectRetries      = 5
	handshakeTimeout         = 10 * time.Second
	messageBuffer            = 64
)

// Supervisor は1本のWebsocket接続とその再接続を管理する。
type Supervisor struct {
	url    string
	token  string
	logger *zap.Logger

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	sessionID  string
	joinedRoom string // 再接続時にリプレイする参加先。空なら未参加。

	messages  chan Message
	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

// Dial は接続を開始して監視ループを起動する。
// 初回接続もバックオフ込みで試行し、全滅したらエラーを返す。
func Dial(rawURL, token string, logger *zap.Logger) (*Supervisor, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, err
	}
	s := &Supervisor{
		url:      rawURL,
		token:    token,
		logger:   logger,
		messages: make(chan Message, messageBuffer),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	conn, err := s.connect()
	if err != nil {
		return nil, err
	}
	s.setConn(conn)
	go s.run(conn)
	return s, nil
}

// Messages は受信フレームのチャネルを返す。Closeで閉じられる。
func (s *Supervisor) Messages() <-chan Message { return s.messages }

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID はサーバから割り当てられた現在のセッションIDを返す。
func (s *Supervisor) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Join はルームへの参加を要求し、以後の再接続でも同じルームへ入り直す。
func (s *Supervisor) Join(competitionID string) error {
	s.mu.Lock()
	s.joinedRoom = competitionID
	s.mu.Unlock()
	if err := s.Send(map[string]string{
		"type":          "join:leaderboard",
		"leaderboardId": competitionID,
	}); err != nil {
		return err
	}
	s.setState(StateJoined)
	return nil
}

// Leave はルームから退出し、再接続時のリプレイも解除する。
func (s *Supervisor) Leave() error {
	s.mu.Lock()
	s.joinedRoom = ""
	s.mu.Unlock()
	if err := s.Send(map[string]string{"type": "leave:leaderboard"}); err != nil {
		return err
	}
	s.setState(StateConnected)
	return nil
}

// Complete は課題完了を送信する。応答はMessages経由で届く。
func (s *Supervisor) Complete(competitionID, teamID, challengeID string) error {
	return s.Send(map[string]string{
		"type":          "complete:challenge",
		"leaderboardId": competitionID,
		"teamId":        teamID,
		"challengeId":   challengeID,
	})
}

// Send は任意のメッセージをJSONで送信する。
func (s *Supervisor) Send(v interface{}) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Close は監視を止めて接続を閉じる。ループの完全な終了まで待つので、
// 戻った時点で再接続が走ることはない。
func (s *Supervisor) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})
	<-s.loopDone
	return nil
}

// run は読み取りと再接続のループ。doneが閉じられるまで回り続ける。
func (s *Supervisor) run(conn *websocket.Conn) {
	defer func() {
		s.setState(StateDisconnected)
		close(s.messages)
		close(s.loopDone)
	}()

	for {
		s.readUntilError(conn)
		select {
		case <-s.done:
			return
		default:
		}

		s.setState(StateDisconnected)
		s.logger.Info("Connection lost, reconnecting")
		next, err := s.connect()
		if err != nil {
			s.logger.Error("Reconnect attempts exhausted", zap.Error(err))
			return
		}
		s.setConn(next)
		conn = next
		s.replayJoin()
	}
}

// connect はバックオフ付きで接続を確立する。
func (s *Supervisor) connect() (*websocket.Conn, error) {
	s.setState(StateConnecting)
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = reconnectInitialInterval
	policy.MaxInterval = reconnectMaxInterval

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	var conn *websocket.Conn
	operation := func() error {
		select {
		case <-s.done:
			return backoff.Permanent(ErrClosed)
		default:
		}
		c, _, err := dialer.Dial(s.dialURL(), nil)
		if err != nil {
			s.logger.Debug("Dial failed", zap.Error(err))
			return err
		}
		conn = c
		return nil
	}
	err := backoff.Retry(operation, backoff.WithMaxRetries(policy, maxReconnectRetries))
	if err != nil {
		s.setState(StateDisconnected)
		return nil, err
	}
	s.setState(StateConnected)
	return conn, nil
}

// dialURL はセッション・トークンのクエリを付けた接続先を組み立てる。
func (s *Supervisor) dialURL() string {
	u, err := url.Parse(s.url)
	if err != nil {
		return s.url
	}
	q := u.Query()
	s.mu.Lock()
	if s.sessionID != "" {
		q.Set("session", s.sessionID)
	}
	s.mu.Unlock()
	if s.token != "" {
		q.Set("token", s.token)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// readUntilError は接続が切れるまで受信フレームをチャネルへ流す。
func (s *Supervisor) readUntilError(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var probe struct {
			Type      string `json:"type"`
			SessionID string `json:"sessionId"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			s.logger.Debug("Dropping malformed frame", zap.Error(err))
			continue
		}
		if probe.Type == "session" {
			s.mu.Lock()
			s.sessionID = probe.SessionID
			s.mu.Unlock()
		}
		select {
		case s.messages <- Message{Type: probe.Type, Raw: raw}:
		case <-s.done:
			return
		default:
			// 消費が追いつかない場合は最も古い通知を落とす
			select {
			case <-s.messages:
			default:
			}
			s.messages <- Message{Type: probe.Type, Raw: raw}
		}
	}
}

// replayJoin は再接続後に参加中だったルームへ入り直す。
func (s *Supervisor) replayJoin() {
	s.mu.Lock()
	room := s.joinedRoom
	s.mu.Unlock()
	if room == "" {
		return
	}
	if err := s.Send(map[string]string{
		"type":          "join:leaderboard",
		"leaderboardId": room,
	}); err != nil {
		s.logger.Warn("Failed to replay room join", zap.Error(err))
		return
	}
	s.setState(StateJoined)
	s.logger.Info("Rejoined leaderboard room", zap.String("competitionId", room))
}

func (s *Supervisor) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Supervisor) setConn(conn *websocket.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}
