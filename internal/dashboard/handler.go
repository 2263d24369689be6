// internal/dashboard/handler.go
package dashboard

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"smarttest/internal/auth"
	"smarttest/internal/exam"
	"smarttest/internal/models"
)

type Handler struct {
	exams   *exam.Service
	auth    *auth.Service
	isAdmin func(int64) bool
}

func NewHandler(exams *exam.Service, authService *auth.Service, isAdmin func(int64) bool) *Handler {
	return &Handler{exams: exams, auth: authService, isAdmin: isAdmin}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func (h *Handler) GetMyTests(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tests, err := h.exams.TestsByOwner(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to load tests", http.StatusInternalServerError)
		return
	}

	summaries := make([]models.TestSummaryDTO, 0, len(tests))
	for _, t := range tests {
		count, err := h.exams.ParticipantCount(r.Context(), t.Code)
		if err != nil {
			log.Printf("Error counting participants of test %d: %v", t.Code, err)
		}
		summaries = append(summaries, t.ToSummary(count))
	}
	writeJSON(w, summaries)
}

func (h *Handler) GetTest(w http.ResponseWriter, r *http.Request) {
	test, ok := h.ownedTest(w, r)
	if !ok {
		return
	}

	count, err := h.exams.ParticipantCount(r.Context(), test.Code)
	if err != nil {
		http.Error(w, "Failed to count participants", http.StatusInternalServerError)
		return
	}
	writeJSON(w, test.ToSummary(count))
}

func (h *Handler) GetResults(w http.ResponseWriter, r *http.Request) {
	test, ok := h.ownedTest(w, r)
	if !ok {
		return
	}

	_, entries, err := h.exams.Results(r.Context(), test.Code)
	if err != nil {
		http.Error(w, "Failed to load results", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	writeJSON(w, map[string]interface{}{
		"test":    test.ToSummary(int64(len(entries))),
		"results": entries,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// ownedTest loads the test named by the route and checks the caller may see
// it. It writes the error response itself.
func (h *Handler) ownedTest(w http.ResponseWriter, r *http.Request) (*models.Test, bool) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	code, err := strconv.Atoi(mux.Vars(r)["code"])
	if err != nil {
		http.Error(w, "Invalid test code", http.StatusBadRequest)
		return nil, false
	}

	test, err := h.exams.GetTestByCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, exam.ErrTestNotFound) {
			http.Error(w, "Test not found", http.StatusNotFound)
		} else {
			http.Error(w, "Failed to load test", http.StatusInternalServerError)
		}
		return nil, false
	}

	if err := exam.Authorize(test, userID, h.isAdmin(userID)); err != nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return nil, false
	}
	return test, true
}

// AuthorizeWatcher lets the owner of a test, or an admin, follow its live
// events.
func (h *Handler) AuthorizeWatcher(r *http.Request, room, token string) bool {
	userID, err := h.auth.Verify(token)
	if err != nil {
		return false
	}
	code, err := strconv.Atoi(room)
	if err != nil {
		return false
	}
	test, err := h.exams.GetTestByCode(r.Context(), code)
	if err != nil {
		return false
	}
	return exam.Authorize(test, userID, h.isAdmin(userID)) == nil
}
