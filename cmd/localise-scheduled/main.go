package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

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

	// Triggered by Cloud Scheduler through Pub/Sub ("0 2 15 1 *", yearly).
	functions.CloudEvent("ScheduledLocalise", scheduledLocalise)
}

// main is required by the Go Functions Framework.
func main() {}

// scheduledLocalise runs an unfiltered pass over every school and template.
func scheduledLocalise(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		localiserInstance, initErr = services.NewLocaliserFromEnv(context.Background(), os.Stdout, slog.Default())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	logCtx := slog.With("eventId", e.ID(), "eventType", e.Type())
	logCtx.Info("Scheduled localisation triggered")

	res, err := localiserInstance.Process(ctx, &models.LocaliseRequest{})
	if err != nil {
		// Returning the error marks the invocation as failed.
		return err
	}
	logCtx.Info("Scheduled localisation complete", "processed", res.Processed, "success", res.Success, "failed", res.Failed)
	return nil
}
