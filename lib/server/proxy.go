package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
)

// proxy the websocket connection of the client to the browser frame by frame
func (s *Server) proxy(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "server is closing", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	upstream, _, err := s.dialer.DialContext(r.Context(), s.browserURL, nil)
	if err != nil {
		s.logger.Println("[server] Failed to connect the browser:", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	client, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already replied the error to the client
		_ = upstream.Close()
		return
	}

	if !s.addConns(upstream, client) {
		_ = upstream.Close()
		_ = client.Close()
		return
	}
	defer s.removeConns(upstream, client)

	s.logger.Println("[server] Connected:", r.RemoteAddr)
	s.event.Publish(&Event{Type: EventConnect, Remote: r.RemoteAddr})

	errs := make(chan error, 2)
	go pipe(upstream, client, errs)
	go pipe(client, upstream, errs)

	err = <-errs
	_ = upstream.Close()
	_ = client.Close()
	<-errs

	s.logger.Println("[server] Disconnected:", r.RemoteAddr, err)
	s.event.Publish(&Event{Type: EventDisconnect, Remote: r.RemoteAddr})
}

// pipe messages from src to dst until one of them fails. The close frame from src will be forwarded to dst.
func pipe(dst, src *websocket.Conn, errs chan<- error) {
	for {
		t, msg, err := src.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code != websocket.CloseAbnormalClosure {
				_ = dst.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(ce.Code, ce.Text))
			}
			errs <- err
			return
		}

		err = dst.WriteMessage(t, msg)
		if err != nil {
			errs <- err
			return
		}
	}
}
