package qcomposer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeWait = 10 * time.Second

/*
handleSubscribe upgrades the request to a websocket and streams events.

The optional "events" query parameter limits the stream to a comma separated
list of event names. Clients are not expected to send anything; the read side
is only watched so a disconnect ends the subscription.
*/
func (server *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: server.originPatterns(),
	})
	if err != nil {
		server.log.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	subscription := server.group.Subscribe(server.cfg.SubscriberBuffer, parseEventNames(r.URL.Query().Get("events"))...)
	defer server.group.Unsubscribe(subscription.ID)

	log := server.log.With().
		Str("component", "socket").
		Str("subscriber", subscription.ID).
		Logger()
	log.Info().Msg("subscriber connected")

	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("subscriber disconnected")
			return
		case event, ok := <-subscription.C:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "composer shutting down")
				return
			}

			if err := writeEvent(ctx, conn, event); err != nil {
				log.Debug().Err(err).Msg("dropping subscriber after failed write")
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, event Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()

	return wsjson.Write(ctx, conn, event)
}

func (server *Server) originPatterns() []string {
	patterns := make([]string, 0, len(server.cfg.AllowedOrigins))
	for _, origin := range server.cfg.AllowedOrigins {
		origin = strings.TrimPrefix(strings.TrimPrefix(origin, "https://"), "http://")
		if origin != "" {
			patterns = append(patterns, origin)
		}
	}
	return patterns
}

func parseEventNames(raw string) []EventName {
	if raw == "" {
		return nil
	}

	var names []EventName
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, EventName(name))
		}
	}
	return names
}
