package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/hsnsmii/finport/internal/modules/pipeline"
)

// writeTimeout bounds a single websocket write to a subscriber.
const writeTimeout = 5 * time.Second

// StreamHandler pushes each newly published pipeline result to websocket
// subscribers, so UI clients follow the latest completed run without
// polling.
type StreamHandler struct {
	state *pipeline.StateManager
	log   zerolog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(state *pipeline.StateManager, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		state: state,
		log:   log.With().Str("handler", "stream").Logger(),
	}
}

// HandleStream upgrades to a websocket and forwards published results
// until the client disconnects.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS is enforced by the router middleware
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	results, cancel := h.state.Subscribe()
	defer cancel()

	h.log.Debug().Msg("Stream subscriber connected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-results:
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, result)
			cancelWrite()
			if err != nil {
				h.log.Debug().Err(err).Msg("Stream subscriber disconnected")
				return
			}
		}
	}
}
