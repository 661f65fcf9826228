package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/louisbranch/monarena/internal/platform/timeouts"
	"github.com/louisbranch/monarena/internal/services/arena/app"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// feedMessage is one websocket frame. The first frame is a snapshot; every
// later frame carries one update.
type feedMessage struct {
	Type     string          `json:"type"`
	Snapshot *app.BattleView `json:"snapshot,omitempty"`
	Update   *app.Update     `json:"update,omitempty"`
}

// feed streams a battle's updates to a spectator until the battle ends or the
// client goes away.
func (h *Handler) feed(w http.ResponseWriter, r *http.Request) {
	battleID := mux.Vars(r)["id"]
	// Subscribe before the snapshot so no update falls between them.
	sub, cancel, err := h.svc.Hub().Subscribe(battleID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer cancel()
	snapshot, err := h.svc.Battle(battleID)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("arena feed: upgrade %s: %v", battleID, err)
		return
	}
	defer conn.Close()

	if err := writeFrame(conn, feedMessage{Type: "snapshot", Snapshot: &snapshot}); err != nil {
		return
	}
	if snapshot.Winner != "none" {
		closeFeed(conn, "battle over")
		return
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case u, ok := <-sub.C:
			if !ok {
				closeFeed(conn, "battle over")
				return
			}
			if err := writeFrame(conn, feedMessage{Type: "update", Update: &u}); err != nil {
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg feedMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(timeouts.FeedWrite))
	return conn.WriteJSON(msg)
}

func closeFeed(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(timeouts.FeedWrite))
}
