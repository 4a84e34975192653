package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/searchchat/searchchat/internal/events"
	"github.com/searchchat/searchchat/internal/llm"
	"github.com/searchchat/searchchat/internal/store"
)

type chatTurnRequest struct {
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

// chatTurn runs one full exchange: persist the user message, load history,
// let the model decide on tool use, fan tool calls out, stream the final
// completion to the client and persist it. Errors before the first delta
// surface as HTTP statuses; later ones as a stream error event. Nothing
// already streamed is rolled back.
func (s *Server) chatTurn(w http.ResponseWriter, r *http.Request) {
	var req chatTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.ChatID) == "" || strings.TrimSpace(req.Message) == "" {
		http.Error(w, "chat_id and message required", http.StatusBadRequest)
		return
	}

	// The request context propagates a client disconnect into every
	// downstream call, aborting in-flight model requests.
	ctx := r.Context()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	userMsg := store.Message{
		ID:        uuid.New().String(),
		ChatID:    req.ChatID,
		Role:      llm.RoleUser,
		Content:   req.Message,
		CreatedAt: now,
	}
	if err := s.store.AddMessage(ctx, userMsg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "chat not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.broker.Publish(events.ChatEvent{
		Type:    "message.added",
		ChatID:  req.ChatID,
		Ts:      now,
		Payload: map[string]any{"message_id": userMsg.ID, "role": userMsg.Role},
	})

	chat, err := s.store.GetChat(ctx, req.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "chat not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	history := make([]llm.Message, 0, len(chat.Messages))
	for _, msg := range chat.Messages {
		history = append(history, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	decision, err := s.gateway.Decide(ctx, history)
	if err != nil {
		log.Printf("chat turn %s: decide: %v", req.ChatID, err)
		http.Error(w, "model gateway error", http.StatusInternalServerError)
		return
	}

	if len(decision.ToolCalls) > 0 {
		// Results land at the index of their originating call, so the
		// order appended below matches the order the calls were issued.
		results := make([]llm.Message, len(decision.ToolCalls))
		var wg sync.WaitGroup
		for i, call := range decision.ToolCalls {
			wg.Add(1)
			go func(i int, call llm.ToolCall) {
				defer wg.Done()
				results[i] = s.tools.Execute(ctx, call)
			}(i, call)
		}
		wg.Wait()
		history = append(history, llm.AssistantToolCalls(decision.Content, decision.ToolCalls))
		history = append(history, results...)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	var full strings.Builder
	streamErr := s.gateway.StreamCompletion(ctx, history, func(delta string) error {
		full.WriteString(delta)
		if err := writeDataEvent(w, map[string]string{"content": delta}); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if streamErr != nil {
		s.failStream(w, flusher, req.ChatID, streamErr)
		return
	}

	if full.Len() > 0 {
		now = time.Now().UTC().Format(time.RFC3339Nano)
		assistantMsg := store.Message{
			ID:        uuid.New().String(),
			ChatID:    req.ChatID,
			Role:      llm.RoleAssistant,
			Content:   full.String(),
			CreatedAt: now,
		}
		if err := s.store.AddMessage(ctx, assistantMsg); err != nil {
			s.failStream(w, flusher, req.ChatID, err)
			return
		}
		s.broker.Publish(events.ChatEvent{
			Type:    "message.added",
			ChatID:  req.ChatID,
			Ts:      now,
			Payload: map[string]any{"message_id": assistantMsg.ID, "role": assistantMsg.Role},
		})

		// First exchange: the only prior message is the user's and the
		// title is still unset. The title is opportunistic; a failure here
		// must not abort a stream that already delivered the full reply.
		if len(chat.Messages) == 1 && chat.Title == "" {
			s.generateTitle(ctx, req.ChatID, req.Message)
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) generateTitle(ctx context.Context, chatID string, seed string) {
	title, err := s.gateway.SummarizeTitle(ctx, seed)
	if err != nil {
		log.Printf("chat turn %s: summarize title: %v", chatID, err)
		return
	}
	if title == "" {
		return
	}
	if err := s.store.SetChatTitle(ctx, chatID, title); err != nil {
		log.Printf("chat turn %s: set title: %v", chatID, err)
		return
	}
	s.broker.Publish(events.ChatEvent{
		Type:    "chat.title.updated",
		ChatID:  chatID,
		Ts:      time.Now().UTC().Format(time.RFC3339Nano),
		Payload: map[string]any{"title": title},
	})
}

func (s *Server) failStream(w io.Writer, flusher http.Flusher, chatID string, err error) {
	log.Printf("chat turn %s: %v", chatID, err)
	_ = writeDataEvent(w, map[string]string{"error": err.Error()})
	flusher.Flush()
}

func writeDataEvent(w io.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
