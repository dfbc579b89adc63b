package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"sat-practice-service/internal/app"
	"sat-practice-service/internal/auth"
	"sat-practice-service/internal/domain"
)

// APIHandler serves the non-session endpoints: browsing the question bank,
// submitting new questions, and the auth session surface.
type APIHandler struct {
	service  *app.PracticeService
	broker   *auth.Broker
	verifier *auth.Verifier
	validate *validator.Validate
}

func NewAPIHandler(service *app.PracticeService, broker *auth.Broker, verifier *auth.Verifier) *APIHandler {
	return &APIHandler{
		service:  service,
		broker:   broker,
		verifier: verifier,
		validate: validator.New(),
	}
}

// Register wires the handler's routes onto the mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/questions", h.listQuestions)
	mux.HandleFunc("/api/submissions", h.submitQuestion)
	mux.HandleFunc("/api/auth/session", h.session)
	mux.HandleFunc("/api/auth/signin", h.signIn)
	mux.HandleFunc("/api/auth/signout", h.signOut)
}

func (h *APIHandler) listQuestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	questions, err := h.service.Questions(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrNoQuestions) {
			writeJSON(w, http.StatusOK, []domain.Question{})
			return
		}
		log.Printf("list questions failed: %v", err)
		http.Error(w, "failed to load questions", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, questions)
}

type submissionRequest struct {
	Text string `json:"text" validate:"required"`
}

func (h *APIHandler) submitQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	if err := h.service.SubmitQuestion(r.Context(), req.Text); err != nil {
		log.Printf("question submission failed: %v", err)
		http.Error(w, "failed to submit question, please try again", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if user, ok := h.broker.Current(); ok {
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": nil})
}

type signInRequest struct {
	Token string `json:"token" validate:"required"`
}

func (h *APIHandler) signIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	user, err := h.verifier.Verify(req.Token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	h.broker.SignIn(user)
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *APIHandler) signOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.broker.SignOut()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
