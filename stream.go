package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/audio"
	"github.com/aousabdo/meetingsage/internal/usecase"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 8 << 10,
	// The API is same-origin in the personal deployment; the browser client
	// is served from this process.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// controlMessage is a JSON text frame on the recording socket. Binary frames
// carry audio.
type controlMessage struct {
	Type string `json:"type"`
}

type streamReply struct {
	Type     string  `json:"type"`
	Error    string  `json:"error,omitempty"`
	FilePath string  `json:"file_path,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	// Synthetic marks stops where the capture was degenerate and a
	// generated tone was written instead.
	Synthetic bool `json:"synthetic,omitempty"`
}

// handleRecordStream runs a live recording session over a websocket. Text
// frames carry start/stop control, binary frames carry encoded audio. A
// disconnect mid-session stops and saves best-effort.
func (a *App) handleRecordStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := a.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	recording := false

	defer func() {
		if !recording {
			return
		}
		// Client went away mid-recording; salvage what was captured.
		buf, err := a.recorder.Stop()
		if err != nil || buf == nil {
			return
		}
		if saved, err := a.audio.SaveBuffer(*buf); err == nil {
			log.Info().Str("path", saved.Path).Msg("saved recording after disconnect")
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			frame, err := audio.DecodeFrame(data)
			if err != nil {
				log.Warn().Err(err).Msg("dropping malformed audio frame")
				continue
			}
			a.recorder.PushFrame(frame)

		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				a.sendReply(conn, streamReply{Type: "error", Error: "invalid control message"})
				continue
			}

			switch msg.Type {
			case "start":
				if err := a.recorder.Start(); err != nil {
					if errors.Is(err, usecase.ErrRecordingActive) {
						a.sendReply(conn, streamReply{Type: "error", Error: "recording already in progress"})
						continue
					}
					a.sendReply(conn, streamReply{Type: "error", Error: err.Error()})
					continue
				}
				recording = true
				log.Info().Msg("recording started")
				a.sendReply(conn, streamReply{Type: "started"})

			case "stop":
				reply := a.stopAndSave(log)
				recording = false
				a.sendReply(conn, reply)

			default:
				a.sendReply(conn, streamReply{Type: "error", Error: "unknown control message type"})
			}
		}
	}
}

func (a *App) stopAndSave(log zerolog.Logger) streamReply {
	buf, err := a.recorder.Stop()
	if err != nil {
		if errors.Is(err, usecase.ErrNoActiveSession) {
			return streamReply{Type: "error", Error: "no recording in progress"}
		}
		return streamReply{Type: "error", Error: err.Error()}
	}
	if buf == nil {
		return streamReply{Type: "stopped", Error: "no audio captured"}
	}

	saved, err := a.audio.SaveBuffer(*buf)
	if err != nil {
		log.Error().Err(err).Msg("failed to save recording")
		return streamReply{Type: "error", Error: "failed to save recording"}
	}

	log.Info().Str("path", saved.Path).Float64("duration", saved.Duration).Msg("recording stopped")
	return streamReply{
		Type:      "saved",
		FilePath:  saved.Path,
		Duration:  saved.Duration,
		Synthetic: saved.Synthetic,
	}
}

func (a *App) sendReply(conn *websocket.Conn, reply streamReply) {
	if err := conn.WriteJSON(reply); err != nil {
		a.log.Debug().Err(err).Msg("failed to write websocket reply")
	}
}
