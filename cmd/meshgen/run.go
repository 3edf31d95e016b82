package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cadforge/meshgen/internal/app"
	"github.com/cadforge/meshgen/internal/config"
	"github.com/cadforge/meshgen/internal/server"
	"github.com/cadforge/meshgen/internal/worker"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the meshgen server",
	RunE:  runApp,
}

func init() {
	flags := runCmd.Flags()

	flags.Int("port", 8881, "Port to run the server on")
	flags.String("host", "localhost", "Host to run the server on")
	flags.String("environment", "dev", "Environment configuration")
	flags.String("models-dir", "", "Directory holding the .FCStd model catalog")
	flags.String("public-dir", "", "Path where static files should be served from")
	flags.String("db-dsn", "", "Database DSN for the generation history ledger; empty disables it")
	flags.String("pulsar-url", "", "URL of the pulsar broker. Example: pulsar://localhost:6650")

	viper.BindPFlag("port", flags.Lookup("port"))
	viper.BindPFlag("host", flags.Lookup("host"))
	viper.BindPFlag("environment", flags.Lookup("environment"))
	viper.BindPFlag("models_dir", flags.Lookup("models-dir"))
	viper.BindPFlag("public_dir", flags.Lookup("public-dir"))
	viper.BindPFlag("db.dsn", flags.Lookup("db-dsn"))
	viper.BindPFlag("pulsar.url", flags.Lookup("pulsar-url"))

	bindEnvs()
}

func bindEnvs() {
	// Core settings, read with the MESHGEN_ prefix. Example: MESHGEN_PORT
	viper.BindEnv("port")
	viper.BindEnv("host")
	viper.BindEnv("environment")
	viper.BindEnv("models_dir")
	viper.BindEnv("temp_dir")
	viper.BindEnv("public_dir")

	viper.BindEnv("freecad.bin")
	viper.BindEnv("freecad.timeout_sec")
	viper.BindEnv("openscad.bin")
	viper.BindEnv("openscad.timeout_sec")

	viper.BindEnv("db.driver")
	viper.BindEnv("db.dsn")
	viper.BindEnv("pulsar.url")
}

func runApp(_ *cobra.Command, _ []string) error {
	a, err := app.NewApp(config.MustGetConfig(),
		app.WithCatalog(),
		app.WithMQ(),
		app.WithDB(),
		app.WithPipeline(),
	)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.GenerationRepository != nil {
		go worker.StartRecorder(a.Context(), a.MQ(), a.GenerationRepository, a.Logger)
	}

	srv, errc, err := runServer(a)
	if err != nil {
		return err
	}

	signalc := make(chan os.Signal, 1)
	signal.Notify(signalc, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case <-signalc:
		a.Logger.Info("shutting down")
		return srv.Stop(a.Context())
	}
}

func runServer(a *app.App) (*server.Server, chan error, error) {
	srv, err := server.NewServer(a.Config())
	if err != nil {
		return nil, nil, err
	}

	srv.SetupRoutes(a)

	errc := make(chan error, 1)
	go func() {
		fmt.Printf("Meshgen server started on port %v\n", a.Config().Port)
		errc <- srv.Start()
	}()

	return srv, errc, nil
}
