package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftwork/weft/internal/logging"
	"github.com/weftwork/weft/internal/server"
)

var (
	servePort int
	serveDir  string
	serveData string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Weft HTTP server",
	Long: `Start Weft as a server that exposes the session and thread API
over HTTP, with live run updates streamed as server-sent events.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory for config lookup")
	serveCmd.Flags().StringVar(&serveData, "data-dir", "", "Storage directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := workingDir(serveDir)
	if err != nil {
		return err
	}

	app, err := buildApp(workDir, serveData)
	if err != nil {
		return err
	}
	defer app.Close()

	serverConfig := server.DefaultConfig()
	serverConfig.Port = app.config.Port
	if servePort != 0 {
		serverConfig.Port = servePort
	}
	if app.config.EnableCORS != nil {
		serverConfig.EnableCORS = *app.config.EnableCORS
	}

	srv := server.New(serverConfig, app.sessions, app.bus)

	go func() {
		fmt.Printf("weft %s listening on http://127.0.0.1:%d\n", Version, serverConfig.Port)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logging.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}

// workingDir returns dir, or the current directory when dir is empty.
func workingDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
