package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/danieltroger/mpi-15k-controller/internal/adapter/actor"
	"github.com/danieltroger/mpi-15k-controller/internal/adapter/influx"
	"github.com/danieltroger/mpi-15k-controller/internal/adapter/state"
	"github.com/danieltroger/mpi-15k-controller/internal/config"
	"github.com/danieltroger/mpi-15k-controller/internal/core/actor"
	"github.com/danieltroger/mpi-15k-controller/internal/core/domain"
	"github.com/danieltroger/mpi-15k-controller/internal/core/port"
	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
	"github.com/danieltroger/mpi-15k-controller/internal/metrics"
	"github.com/danieltroger/mpi-15k-controller/internal/server"
	"github.com/danieltroger/mpi-15k-controller/internal/util/actorutil"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func main() {

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())

	defer logger.Sync()

	// assumed parameters survive restarts in the state file
	defaults := soc.AssumedParameters{
		CapacityWh:            cfg.CurrentState.Capacity,
		ParasiticConsumptionW: cfg.CurrentState.ParasiticConsumption,
	}
	store := state.NewFileParameterStore(cfg.StateFile, defaults)
	params, err := store.Load()
	if err != nil {
		logger.Warn("could not load state file, using current_state from config", zap.String("file", cfg.StateFile), zap.Error(err))
		params = defaults
	}

	historyClient := influx.NewHistoryClient(cfg)
	if !cfg.InfluxDB.Enabled() {
		logger.Info("influxdb.url not set, estimating from live telemetry only")
	}

	m := metrics.New()
	m.ObserveParameters(params)

	// init actor system
	as := actorutil.NewActorSystemWithZapLogger(logger)
	ctx := as.Root

	props := pactor.PropsFromProducer(func() pactor.Actor {
		return actor.NewMasterOfPuppetsActor(*cfg, mqttActorProvider(cfg, logger),
			historyActorProvider(cfg, historyClient, logger), store, params, m, logger)
	})
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return
	}

	server := server.NewServer(*cfg, ctx, pid, m)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")

	_ = ctx.StopFuture(pid).Wait()
	as.Shutdown()
}

func initConfig() (*config.Config, error) {

	// alias PORT => MPI_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("MPI_PORT", port)
	}

	setConfigDefaults()

	viper.SetEnvPrefix("mpi")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	// parse log level
	switch viper.GetString("log_level") {
	case "trace":
		cfg.LogLevel = zap.DebugLevel
	case "debug":
		cfg.LogLevel = zap.DebugLevel
	case "info":
		cfg.LogLevel = zap.InfoLevel
	case "error":
		cfg.LogLevel = zap.ErrorLevel
	case "warn":
		cfg.LogLevel = zap.WarnLevel
	case "fatal":
		cfg.LogLevel = zap.FatalLevel
	default:
		cfg.LogLevel = zap.InfoLevel
	}

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

func historyActorProvider(cfg *config.Config, client port.HistoryClient, logger *zap.Logger) actor.HistoryActorProvider {
	return func() *adactor.HistoryActor {
		return adactor.NewHistoryActor(client, cfg.InfluxDB.QueryTimeout(), logger)
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("port", 8080)
	viper.SetDefault("http_log", false)
	viper.SetDefault("state_file", "state.yaml")

	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "mpi")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("mqtt.telemetry.voltage_topic", "mpi/telemetry/battery_voltage")
	viper.SetDefault("mqtt.telemetry.current_topic", "mpi/telemetry/battery_current")

	viper.SetDefault("influxdb.url", "")
	viper.SetDefault("influxdb.measurement", "mpi")
	viper.SetDefault("influxdb.voltage_field", "battery_voltage")
	viper.SetDefault("influxdb.current_field", "battery_current")
	viper.SetDefault("influxdb.power_field", "battery_power")
	viper.SetDefault("influxdb.lookback_days", 30)
	viper.SetDefault("influxdb.query_timeout_millis", 20000)

	viper.SetDefault("search.workers", 1)
	viper.SetDefault("search.interval_seconds", 3600)
	viper.SetDefault("search.cooldown_seconds", 60)
	viper.SetDefault("search.tolerance", 0.01)
	viper.SetDefault("search.result_log_dir", "")

	viper.SetDefault("estimate.publish_interval_millis", 5000)
	viper.SetDefault("estimate.history_retry_seconds", 30)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	cfg.InfluxDB.Token = "*redacted*"
	slog.Info("Using", "config", cfg)
}
