package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleChatWebSocket runs a bidirectional chat connection: broker
// events flow to the client, user messages flow to the session service.
func (s *Server) handleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	svc, err := s.session(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket", "error", err)
		return
	}
	defer ws.Close()

	done := make(chan struct{})
	events, cancel := svc.Broker().Channel()
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)

	// Writer goroutine: relays broker events to the client.
	go func() {
		defer wg.Done()
		defer ws.Close()

		for {
			select {
			case <-done:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := ws.WriteJSON(ev); err != nil {
					slog.Error("WebSocket write error", "error", err)
					return
				}
			}
		}
	}()

	// Reader loop: receives user messages.
	for {
		var msg struct {
			Content string `json:"content"`
		}
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				break
			}
			slog.Error("WebSocket read error", "error", err)
			break
		}

		if msg.Content != "" {
			go svc.SendMessage(context.Background(), msg.Content)
		}
	}

	close(done)
	wg.Wait()
}
