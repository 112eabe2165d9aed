package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func readEvent(t *testing.T, conn *websocket.Conn, want string) map[string]json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg map[string]json.RawMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %q: %v", want, err)
		}
		var event string
		_ = json.Unmarshal(msg["event"], &event)
		if event == want {
			return msg
		}
	}
}

func TestSessionStream(t *testing.T) {
	s := newTestServer(t)
	s.publish(t, s.adminToken(t))
	_, token := s.studentLogin(t, "ABC")

	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/student/stream?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	if err := conn.WriteJSON(map[string]interface{}{"action": "ping"}); err != nil {
		t.Fatal(err)
	}
	readEvent(t, conn, "pong")

	if err := conn.WriteJSON(map[string]interface{}{"action": "answer", "field": "q_1", "value": 1}); err != nil {
		t.Fatal(err)
	}
	readEvent(t, conn, "saved")

	if err := conn.WriteJSON(map[string]interface{}{"action": "event", "kind": "blur"}); err != nil {
		t.Fatal(err)
	}
	readEvent(t, conn, "reaction")

	if err := conn.WriteJSON(map[string]interface{}{"action": "submit"}); err != nil {
		t.Fatal(err)
	}
	msg := readEvent(t, conn, "finished")
	if !strings.Contains(string(msg["data"]), `"got":2`) {
		t.Fatalf("finished = %s", msg["data"])
	}

	if err := conn.WriteJSON(map[string]interface{}{"action": "dance"}); err != nil {
		t.Fatal(err)
	}
	msg = readEvent(t, conn, "error")
	if !strings.Contains(string(msg["code"]), "INVALID_PAYLOAD") {
		t.Fatalf("error = %v", msg)
	}
}
