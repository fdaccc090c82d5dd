package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"lighthouse.app/cityintel/internal/feed"
	"lighthouse.app/cityintel/internal/http/dto"
	"lighthouse.app/cityintel/internal/pipeline"
)

const (
	streamBlock      = 25 * time.Second
	streamRetryDelay = time.Second

	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = socketPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type socketMessage struct {
	Type      string            `json:"type"`
	Data      pipeline.Snapshot `json:"data"`
	Timestamp time.Time         `json:"timestamp"`
}

type PipelineHandler struct {
	orch PipelineController
	feed feed.Reader
}

// NewPipelineHandler wires the pipeline endpoints. reader may be nil when no feed is configured.
func NewPipelineHandler(orch PipelineController, reader feed.Reader) *PipelineHandler {
	return &PipelineHandler{orch: orch, feed: reader}
}

func (h *PipelineHandler) Start(c *gin.Context) {
	ctx := c.Request.Context()

	cycleID, err := h.orch.Start(ctx)
	if err != nil {
		if errors.Is(err, pipeline.ErrCycleInFlight) {
			c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to start cycle", "error", err)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to start cycle"})
		return
	}

	c.JSON(http.StatusAccepted, dto.StartCycleResponse{CycleID: cycleID, Status: "started"})
}

func (h *PipelineHandler) Stop(c *gin.Context) {
	h.orch.Stop()
	c.JSON(http.StatusOK, h.orch.Snapshot())
}

func (h *PipelineHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.orch.Snapshot())
}

// Stream tails the running log feed as server-sent events. last_id resumes after a known entry.
func (h *PipelineHandler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	if h.feed == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "live feed not configured"})
		return
	}

	lastID := c.Query("last_id")
	if lastID == "" {
		lastID = "$"
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "streaming not supported"})
		return
	}

	setSSEHeaders(c.Writer)
	sseWrite(c.Writer, "", "ping", "ready")
	flusher.Flush()

	for {
		if ctx.Err() != nil {
			return
		}

		msgs, err := h.feed.Read(ctx, lastID, streamBlock)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.WarnContext(ctx, "feed read failed", "error", err)
			sseWrite(c.Writer, "", "error", dto.ErrorResponse{Error: err.Error()})
			flusher.Flush()

			select {
			case <-ctx.Done():
				return
			case <-time.After(streamRetryDelay):
			}
			continue
		}

		if len(msgs) == 0 {
			sseWrite(c.Writer, "", "ping", time.Now().UTC().Format(time.RFC3339Nano))
			flusher.Flush()
			continue
		}

		for _, msg := range msgs {
			lastID = msg.ID
			sseWrite(c.Writer, msg.ID, msg.Kind, msg)
		}
		flusher.Flush()
	}
}

// Socket pushes a pipeline snapshot to the client after every state change.
func (h *PipelineHandler) Socket(c *gin.Context) {
	ctx := c.Request.Context()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.orch.Subscribe()
	defer unsubscribe()

	closed := make(chan struct{})
	go readPump(conn, closed)

	ping := time.NewTicker(socketPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteJSON(socketMessage{Type: "snapshot", Data: snap, Timestamp: time.Now().UTC()}); err != nil {
				slog.DebugContext(ctx, "websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(socketWriteWait)); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
