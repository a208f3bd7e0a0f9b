package web

import (
	"context"
	"encoding/json"
	"net/http"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/infra/metrics"
	"whatsapp-course-delivery/internal/infra/worker"
	"whatsapp-course-delivery/internal/usecase"
)

// Provider webhook envelope (Cloud API shape). Statuses and inbound messages
// arrive in the same POST body.
type webhookEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string       `json:"field"`
			Value webhookValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookValue struct {
	Messages []inboundMessage `json:"messages"`
	Statuses []statusEvent    `json:"statuses"`
}

type inboundMessage struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Button struct {
		Payload string `json:"payload"`
		Text    string `json:"text"`
	} `json:"button"`
	Interactive struct {
		Type        string `json:"type"`
		ButtonReply struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
}

type statusEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleWebhookVerify answers the provider's subscription handshake: echo the
// challenge only when the mode and the shared verify token both match.
func (s *Server) handleWebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || token == "" || token != s.verifyToken {
		s.log.Warn().Str("mode", mode).Err(domain.ErrWebhookAuth).Msg("webhook verification rejected")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(challenge))
}

// handleWebhookEvents acknowledges fast and processes asynchronously: the
// provider retries on slow responses, which would double-deliver events.
func (s *Server) handleWebhookEvents(w http.ResponseWriter, r *http.Request) {
	var env webhookEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		// Malformed bodies are acknowledged too; there is nothing to retry.
		s.log.Warn().Err(err).Msg("webhook body not decodable")
		w.WriteHeader(http.StatusOK)
		return
	}

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, st := range change.Value.Statuses {
				s.submit(s.statusTask(st))
			}
			for _, msg := range change.Value.Messages {
				s.submit(s.contentTask(msg))
			}
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) submit(task worker.Task) {
	if err := s.pool.Submit(task); err != nil {
		metrics.IncWebhookDrop()
		s.log.Warn().Err(err).Msg("webhook event dropped")
	}
}

func (s *Server) statusTask(st statusEvent) worker.Task {
	return func(ctx context.Context) error {
		status := model.MessageStatus(st.Status)
		switch status {
		case model.StatusSent, model.StatusDelivered, model.StatusRead, model.StatusFailed:
		default:
			s.log.Debug().Str("status", st.Status).Msg("unrecognized status event skipped")
			return nil
		}
		return s.reconciler.ApplyStatus(ctx, st.ID, status)
	}
}

func (s *Server) contentTask(msg inboundMessage) worker.Task {
	ev := usecase.ContentEvent{
		From:              msg.From,
		ProviderMessageID: msg.ID,
		Type:              "text",
		Body:              msg.Text.Body,
	}
	switch msg.Type {
	case "button":
		ev.Type = "button"
		ev.ButtonID = msg.Button.Payload
		ev.ButtonTitle = msg.Button.Text
	case "interactive":
		if msg.Interactive.Type == "button_reply" {
			ev.Type = "button"
			ev.ButtonID = msg.Interactive.ButtonReply.ID
			ev.ButtonTitle = msg.Interactive.ButtonReply.Title
		}
	}
	return func(ctx context.Context) error {
		return s.reconciler.HandleContent(ctx, ev)
	}
}
