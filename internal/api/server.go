package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/searchchat/searchchat/internal/config"
	"github.com/searchchat/searchchat/internal/events"
	"github.com/searchchat/searchchat/internal/llm"
	"github.com/searchchat/searchchat/internal/store"
	"github.com/searchchat/searchchat/internal/web"
)

type Server struct {
	store   store.Store
	gateway Gateway
	tools   ToolRunner
	broker  Broker
	cfg     config.Config
}

// Gateway is the model-API boundary used by the turn orchestrator.
type Gateway interface {
	Decide(ctx context.Context, messages []llm.Message) (*llm.Decision, error)
	StreamCompletion(ctx context.Context, messages []llm.Message, emit func(delta string) error) error
	SummarizeTitle(ctx context.Context, seed string) (string, error)
}

// ToolRunner resolves one tool call into a tool-role message. It never
// fails; failures arrive as descriptive result text.
type ToolRunner interface {
	Execute(ctx context.Context, call llm.ToolCall) llm.Message
}

type Broker interface {
	Publish(event events.ChatEvent)
	Subscribe(ctx context.Context) <-chan events.ChatEvent
}

func NewServer(store store.Store, gateway Gateway, tools ToolRunner, broker Broker, cfg config.Config) *Server {
	return &Server{
		store:   store,
		gateway: gateway,
		tools:   tools,
		broker:  broker,
		cfg:     cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Post("/api/chats", s.createChat)
	r.Get("/api/chats", s.listChats)
	r.Get("/api/chats/{id}", s.getChat)
	r.Delete("/api/chats/{id}", s.deleteChat)
	r.Post("/api/chat", s.chatTurn)
	r.Get("/api/events", s.streamEvents)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/*", web.Handler())

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodGet && (cleanPath == "/api/events" || cleanPath == "/api/chats") {
		return true
	}
	if method == http.MethodOptions {
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.store.ListChats(ctx); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

type chatResponse struct {
	ID        string            `json:"id"`
	Title     *string           `json:"title"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Messages  []messageResponse `json:"messages,omitempty"`
}

type chatSummaryResponse struct {
	ID           string  `json:"id"`
	Title        *string `json:"title"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	MessageCount int64   `json:"message_count"`
}

type messageResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// nullableTitle keeps an unset title as JSON null, matching what the
// browser client expects before the first turn.
func nullableTitle(title string) *string {
	if title == "" {
		return nil
	}
	return &title
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	chat := store.Chat{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateChat(r.Context(), chat); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.broker.Publish(events.ChatEvent{Type: "chat.created", ChatID: chat.ID, Ts: now})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chatResponse{
		ID:        chat.ID,
		Title:     nil,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	})
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.store.ListChats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	results := make([]chatSummaryResponse, 0, len(chats))
	for _, chat := range chats {
		results = append(results, chatSummaryResponse{
			ID:           chat.ID,
			Title:        nullableTitle(chat.Title),
			CreatedAt:    chat.CreatedAt,
			UpdatedAt:    chat.UpdatedAt,
			MessageCount: chat.MessageCount,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}

func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	chat, err := s.store.GetChat(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "chat not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	response := chatResponse{
		ID:        chat.ID,
		Title:     nullableTitle(chat.Title),
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
		Messages:  make([]messageResponse, 0, len(chat.Messages)),
	}
	for _, msg := range chat.Messages {
		response.Messages = append(response.Messages, messageResponse{
			ID:        msg.ID,
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) deleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "id")
	if err := s.store.DeleteChat(r.Context(), chatID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.broker.Publish(events.ChatEvent{
		Type:   "chat.deleted",
		ChatID: chatID,
		Ts:     time.Now().UTC().Format(time.RFC3339Nano),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	eventsChan := s.broker.Subscribe(ctx)
	flusher.Flush()
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			payload, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}
