package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/zaqqye/simlab_backend/internal/models"
	"github.com/zaqqye/simlab_backend/internal/services"
)

func serve(t *testing.T, p models.Principal, path string, h gin.HandlerFunc) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET(path, func(c *gin.Context) {
		c.Set("principal", p)
		c.Next()
	}, h)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// await repeats send until a frame arrives, since registration races the dial.
func await(t *testing.T, conn *websocket.Conn, send func()) []byte {
	t.Helper()
	type result struct {
		data []byte
		err  error
	}
	got := make(chan result, 1)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	go func() {
		_, data, err := conn.ReadMessage()
		got <- result{data, err}
	}()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		send()
		select {
		case r := <-got:
			if r.err != nil {
				t.Fatalf("read: %v", r.err)
			}
			return r.data
		case <-tick.C:
		}
	}
}

func startHubs(t *testing.T) *Hubs {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hubs := NewHubs()
	go hubs.Run(ctx)
	return hubs
}

func TestDashboardOnlyReceivesWatchedGroup(t *testing.T) {
	hubs := startHubs(t)
	admin := models.Principal{ID: "a1", Roles: models.RoleSet{models.RoleAdmin}}
	url := serve(t, admin, "/ws/dashboard", DashboardHandler(nil, hubs.Dashboard))
	conn := dial(t, url+"/ws/dashboard?group_id=g1")

	data := await(t, conn, func() {
		hubs.InteractionChanged(services.InteractionUpdate{InteractionID: "other", GroupID: "g2"})
		hubs.InteractionChanged(services.InteractionUpdate{InteractionID: "mine", GroupID: "g1", Score: models.ScoreMastered})
	})
	var ev DashboardEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Type != eventInteractionUpdated || ev.Interaction.InteractionID != "mine" || ev.Interaction.Score != models.ScoreMastered {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestStudentReceivesOwnUpdates(t *testing.T) {
	hubs := startHubs(t)
	student := models.Principal{ID: "s1", Roles: models.RoleSet{models.RoleStudent}}
	url := serve(t, student, "/ws/student", StudentHandler(hubs))
	conn := dial(t, url+"/ws/student")

	data := await(t, conn, func() {
		hubs.InteractionChanged(services.InteractionUpdate{InteractionID: "x", PrincipalID: "s2"})
		hubs.InteractionChanged(services.InteractionUpdate{InteractionID: "y", PrincipalID: "s1", Completed: true})
	})
	var msg StudentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Interaction == nil || msg.Interaction.InteractionID != "y" || !msg.Interaction.Completed {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestStudentHandlerRejectsInstructors(t *testing.T) {
	hubs := startHubs(t)
	inst := models.Principal{ID: "i1", Roles: models.RoleSet{models.RoleInstructor}}
	url := serve(t, inst, "/ws/student", StudentHandler(hubs))
	_, resp, err := websocket.DefaultDialer.Dial(url+"/ws/student", nil)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != 403 {
		t.Fatalf("expected 403, got %+v", resp)
	}
}

func TestBroadcastWithoutRunningHubDoesNotBlock(t *testing.T) {
	h := NewHubs()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			h.InteractionChanged(services.InteractionUpdate{GroupID: "g", PrincipalID: "p"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("InteractionChanged blocked with no hub running")
	}
}
