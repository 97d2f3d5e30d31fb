package api

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/kaijie-yu/google-ui/internal/engine"
	"github.com/kaijie-yu/google-ui/pkg/models"
)

const streamWriteTimeout = 10 * time.Second

// Stream event types.
const (
	EventLine = "line"
	EventEnd  = "end"
)

// LogEvent is one websocket message of the log stream. Line events carry
// the line and its index; the end event carries the terminal status, empty
// when the log was replaced before its run finished.
type LogEvent struct {
	Type   string           `json:"type"`
	Index  int              `json:"index,omitempty"`
	Line   string           `json:"line,omitempty"`
	Status models.RunStatus `json:"status,omitempty"`
}

// StreamLog follows the current log over a websocket: every existing line is
// replayed, new lines are pushed as they are appended and an end event is
// sent once the log is finished. The connection is then closed.
// (GET /api/v1/builder/log/stream)
func (h *Handler) StreamLog(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// The client never sends anything useful; reading detects its close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := followLog(ctx, conn, h.session.Log()); err != nil {
		h.logger.Debug("log stream ended", "error", err)
	}
	return nil
}

func followLog(ctx context.Context, conn *websocket.Conn, log *engine.ExecutionLog) error {
	offset := 0
	for {
		lines, finished, changed := log.Since(offset)
		for _, line := range lines {
			if err := writeEvent(conn, LogEvent{Type: EventLine, Index: offset, Line: line}); err != nil {
				return err
			}
			offset++
		}
		if finished {
			// Lines appended between Since and Finish are in the snapshot.
			snap := log.Snapshot()
			for ; offset < len(snap.Lines); offset++ {
				if err := writeEvent(conn, LogEvent{Type: EventLine, Index: offset, Line: snap.Lines[offset]}); err != nil {
					return err
				}
			}
			if err := writeEvent(conn, LogEvent{Type: EventEnd, Status: snap.Status}); err != nil {
				return err
			}
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			return conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteTimeout))
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeEvent(conn *websocket.Conn, ev LogEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(ev)
}
