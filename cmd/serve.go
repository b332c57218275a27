package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-validator/internal/logger"
	"github.com/spigell/cv-validator/internal/metrics"
	"github.com/spigell/cv-validator/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker that accepts validation tasks over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("addr", "a", "", "listen address of the worker (default :8000)")

	viper.BindPFlag("worker.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig(viper.GetViper())
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	validator, cleanup, err := newValidator(ctx, config, logger, m)
	if err != nil {
		logger.Fatal("building the validator", zap.Error(err))
	}
	defer cleanup()

	registry, err := worker.NewRegistry(worker.NewCVValidateTask(validator))
	if err != nil {
		logger.Fatal("registering tasks", zap.Error(err))
	}

	logger.Info("starting the cv-validator worker", zap.String("version", version))

	server := worker.New(worker.Config{Addr: config.Worker.Addr, Gatherer: reg}, registry, logger, m)
	if err := server.Run(ctx); err != nil {
		cleanup()
		logger.Fatal("running the worker", zap.Error(err))
	}

	logger.Info("worker stopped")
}
