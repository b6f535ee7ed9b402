package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quiz-desk/internal/domain"
	"quiz-desk/internal/metrics"
	transport "quiz-desk/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	b, err := loadBackend(ctx, configPath)
	if err != nil {
		return err
	}
	defer b.Close()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = b.cfg.Server.Port
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("/ws", transport.NewWSHandler(b.service, b.auth, b.log).ServeWS)
	transport.NewAPIHandler(b.service, b.auth, b.log).Routes(mux)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	b.log.Info("starting quiz server", zap.String("addr", server.Addr), zap.String("storage", b.cfg.Storage.Driver))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	return serve(ctx, server, stop, b.log)
}

// serve runs server until a stop signal arrives, ctx is done, or the
// listener fails. Listener failures are returned.
func serve(ctx context.Context, server *http.Server, stop <-chan os.Signal, log *zap.Logger) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		log.Error("server failed", zap.Error(err))
		return fmt.Errorf("serve %s: %w", server.Addr, err)
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions seeds the in-memory driver so a fresh server is playable.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			Kind:          domain.KindMultipleChoice,
			Prompt:        "What is 2 + 2?",
			Choices:       []string{"3", "4", "5"},
			CorrectAnswer: "4",
		},
		{
			Kind:          domain.KindMultipleChoice,
			Prompt:        "Which planet is known as the Red Planet?",
			Choices:       []string{"Venus", "Mars", "Jupiter", "Saturn"},
			CorrectAnswer: "Mars",
		},
		{
			Kind:          domain.KindTrueFalse,
			Prompt:        "The Pacific is the largest ocean on Earth.",
			CorrectAnswer: "True",
		},
		{
			Kind:          domain.KindTrueFalse,
			Prompt:        "Sound travels faster than light.",
			CorrectAnswer: "False",
		},
		{
			Kind:          domain.KindFillBlank,
			Prompt:        "The chemical symbol for gold is ____.",
			CorrectAnswer: "Au",
		},
		{
			Kind:          domain.KindFillBlank,
			Prompt:        "The capital of Japan is ____.",
			CorrectAnswer: "Tokyo",
		},
	}
}
