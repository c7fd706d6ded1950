package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/policylocaliser/internal/models"
	"github.com/Lllllllleong/policylocaliser/internal/services"
)

var (
	localiserInstance *services.LocaliserFunction
	once              sync.Once
	initErr           error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleLocalise" is the entry point name configured in GCP.
	functions.HTTP("HandleLocalise", handleLocalise)
}

// main is required by the Go Functions Framework.
func main() {}

// handleLocalise runs the localisation pipeline for a manual trigger.
func handleLocalise(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		localiserInstance, initErr = services.NewLocaliserFromEnv(context.Background(), os.Stdout, slog.Default())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		services.WriteJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to initialize service"})
		return
	}

	localiserInstance.ServeHTTP(w, r)
}
