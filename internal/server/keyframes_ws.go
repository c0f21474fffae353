package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"melodypath/internal/artifact"
	"melodypath/internal/types"
)

const (
	keyframeWSWriteWait = 10 * time.Second
	keyframeWSPongWait  = 60 * time.Second
	keyframeWSPingEvery = (keyframeWSPongWait * 9) / 10

	defaultKeyframeBatch = 128
	maxKeyframeBatch     = 4096
)

var keyframeWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type keyframeWSOutbound struct {
	Type      string           `json:"type"`
	RunID     string           `json:"runId,omitempty"`
	Offset    int              `json:"offset"`
	Total     int              `json:"total"`
	Keyframes []types.Keyframe `json:"keyframes,omitempty"`
}

// streamKeyframes replays a stored run's keyframes over a websocket:
// one "start", then "keyframes" batches in time order, then "done".
func (h *Handler) streamKeyframes(c *gin.Context) {
	runID := strings.TrimSpace(c.Query("run_id"))
	if runID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "run_id is required"})
		return
	}
	batch := defaultKeyframeBatch
	if raw := c.Query("batch"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "batch must be a positive integer"})
			return
		}
		batch = min(n, maxKeyframeBatch)
	}

	raw, err := h.deps.Artifacts.Get(c.Request.Context(), runID, artifact.KeyframesFile)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var frames []types.Keyframe
	if err := json.Unmarshal(raw, &frames); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "corrupt keyframes artifact"})
		return
	}

	conn, err := keyframeWSUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(keyframeWSPongWait)); err != nil {
		log.Printf("server: keyframe ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(keyframeWSPongWait))
	})
	// The reader only exists to process control frames and notice the peer leaving.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	writeCh := make(chan keyframeWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(keyframeWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out, ok := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(keyframeWSWriteWait)); err != nil {
					return
				}
				if !ok {
					_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(keyframeWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	push := func(out keyframeWSOutbound) bool {
		select {
		case writeCh <- out:
			return true
		case <-ctx.Done():
			return false
		}
	}

	total := len(frames)
	if push(keyframeWSOutbound{Type: "start", RunID: runID, Total: total}) {
		sent := true
		for off := 0; off < total && sent; off += batch {
			end := min(off+batch, total)
			sent = push(keyframeWSOutbound{Type: "keyframes", RunID: runID, Offset: off, Total: total, Keyframes: frames[off:end]})
		}
		if sent {
			push(keyframeWSOutbound{Type: "done", RunID: runID, Offset: total, Total: total})
		}
	}
	close(writeCh)
	<-writerDone
}
