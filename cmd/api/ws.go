package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"repostack/internal/analyze"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsInbound struct {
	Type     string `json:"type"`
	Owner    string `json:"owner,omitempty"`
	Repo     string `json:"repo,omitempty"`
	Ref      string `json:"ref,omitempty"`
	Question string `json:"question,omitempty"`
	MaxFiles int    `json:"maxFiles,omitempty"`
	MaxBytes int    `json:"maxBytes,omitempty"`
}

type wsOutbound struct {
	Type    string          `json:"type"`
	Message string          `json:"message,omitempty"`
	Result  *analyze.Result `json:"result,omitempty"`
}

// handleAnalyzeWS runs analyses over a websocket: each inbound "analyze"
// message triggers one run, with progress pushed as it happens.
func (s *server) handleAnalyzeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan wsOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
	defer func() {
		cancel()
		<-writerDone
	}()

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		switch in.Type {
		case "analyze":
			if !s.allow() {
				push(writeCh, wsOutbound{Type: "error", Message: "too many requests"})
				continue
			}
			req := analyze.Request{
				Owner: in.Owner, Repo: in.Repo, Ref: in.Ref,
				Question: in.Question,
				MaxFiles: in.MaxFiles, MaxBytes: in.MaxBytes,
			}
			s.applyDefaultLimits(&req)

			res, err := s.svc.Analyze(ctx, req, func(msg string) {
				push(writeCh, wsOutbound{Type: "progress", Message: msg})
			})
			if err != nil {
				push(writeCh, wsOutbound{Type: "error", Message: err.Error()})
				continue
			}
			s.snapshot(req, res)
			push(writeCh, wsOutbound{Type: "result", Result: &res})
		case "ping":
			push(writeCh, wsOutbound{Type: "pong"})
		default:
			push(writeCh, wsOutbound{Type: "error", Message: "unknown message type"})
		}
	}
}

// push drops the message when the writer has stopped draining.
func push(ch chan<- wsOutbound, out wsOutbound) {
	select {
	case ch <- out:
	default:
	}
}
