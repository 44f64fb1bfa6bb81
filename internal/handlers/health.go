package handlers

import (
	"net/http"
	"time"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "1.0.0"

type HealthResponse struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health reports that the API is serving requests.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "success",
		Message:   "PetCare API is running",
		Timestamp: time.Now().UTC(),
		Version:   Version,
	})
}
