package server

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/secretaria-app/secretaria/internal/chat"
)

// doneMarker is the last data line of every chat stream.
const doneMarker = "[DONE]"

// setSSEHeaders prepares a response for an event stream. Buffering proxies
// are told to pass events through as they are written.
func setSSEHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

// encodeEvent renders the data payload of one chat event.
func encodeEvent(ev chat.Event) (string, error) {
	switch ev.Kind {
	case chat.EventContent:
		return ev.Text, nil
	case chat.EventFile:
		ref, err := json.Marshal(ev.File)
		if err != nil {
			return "", err
		}
		return "[FILE:" + string(ref) + "]", nil
	case chat.EventDone:
		return doneMarker, nil
	default:
		return "", fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}

// writeEvent writes one "data: <payload>" frame.
func writeEvent(w io.Writer, payload string) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

// StreamEvents relays a chat event sequence as server-sent events, flushing
// after each one. A failed write stops the sequence, which the chat service
// treats as a client that went away.
func StreamEvents(c *gin.Context, events iter.Seq[chat.Event]) {
	setSSEHeaders(c)
	c.Status(200)
	c.Writer.Flush()

	for ev := range events {
		payload, err := encodeEvent(ev)
		if err != nil {
			logrus.Errorf("Stream encode error: %v", err)
			return
		}
		if err := writeEvent(c.Writer, payload); err != nil {
			logrus.Debugf("Client disconnected, stopping stream: %v", err)
			return
		}
		c.Writer.Flush()
	}
}
