package monitoring

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// stream pushes the target status over a websocket every streamInterval
// until the client goes away or the server stops.
func (m *Monitor) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warnf("stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The client sends nothing; reading only notices when it closes.
	gone := make(chan struct{})
	go func() {
		defer close(gone)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(m.streamInterval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(m.target.Status()); err != nil {
			m.log.Debugf("stream closed: %v", err)
			return
		}

		select {
		case <-gone:
			return
		case <-m.closing:
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
		}
	}
}
