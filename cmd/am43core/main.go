// AM43 Core - HTTP control service for A-OK AM43 BLE blind drives.
//
// The service exposes the drives configured in devices.yaml over a small
// HTTP API. Each request connects to the addressed drives one at a time,
// sends the command frames and reports the per-drive outcome.
//
// Drives are reached through a BLE gateway on the MQTT broker, or through
// an in-memory simulation for development.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/am43-core/internal/api"
	"github.com/nerrad567/am43-core/internal/audit"
	"github.com/nerrad567/am43-core/internal/device"
	"github.com/nerrad567/am43-core/internal/discovery"
	"github.com/nerrad567/am43-core/internal/dispatch"
	"github.com/nerrad567/am43-core/internal/infrastructure/config"
	"github.com/nerrad567/am43-core/internal/infrastructure/database"
	"github.com/nerrad567/am43-core/internal/infrastructure/logging"
	"github.com/nerrad567/am43-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/am43-core/internal/link"
	"github.com/nerrad567/am43-core/internal/schedule"
	"github.com/nerrad567/am43-core/internal/statepub"
	"github.com/nerrad567/am43-core/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Simulated drives start half open with a full battery.
const (
	simulatedPosition = 50
	simulatedBattery  = 100
	simulatedLight    = 4
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting AM43 Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := config.PathFromEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	registry, err := device.LoadFile(cfg.DevicesFile, log.Component("registry"))
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	log.Info("device registry loaded",
		"path", cfg.DevicesFile,
		"groups", len(registry.Groups()),
		"devices", registry.Len(),
	)

	// Open database (if enabled)
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		applied, migrateErr := db.Migrate(ctx, migrations.FS, ".")
		if migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete", "applied", applied)
	} else {
		log.Info("database disabled, dispatch log not kept")
	}

	// Connect to MQTT (if enabled)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.Component("mqtt"))
		defer func() {
			log.Info("closing MQTT connection")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", cfg.MQTT.Broker.Host,
			"port", cfg.MQTT.Broker.Port,
		)
	} else {
		log.Info("MQTT disabled")
	}

	transport, err := startTransport(cfg, mqttClient, registry, log)
	if err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}
	if gw, ok := transport.(*link.MQTTTransport); ok {
		defer func() {
			log.Info("stopping BLE gateway transport")
			if stopErr := gw.Stop(); stopErr != nil {
				log.Error("error stopping BLE gateway transport", "error", stopErr)
			}
		}()
	}

	dialer := link.NewDialer(transport, link.Options{
		ConnectAttempts: cfg.Link.ConnectAttempts,
		ConnectDelay:    cfg.Link.ConnectDelay,
		NotifyTimeout:   cfg.Link.NotifyTimeout,
		WriteTimeout:    cfg.Link.WriteTimeout,
	})
	dialer.SetLogger(log.Component("link"))

	dispatcher := dispatch.NewDispatcher(registry, dialer, log.Component("dispatch"))

	// The probe always backs GET /am43/discovery; it only gates dispatches
	// when discovery is enabled.
	probe := discovery.NewProbe(transport, discovery.Options{
		Attempts:    cfg.Discovery.Attempts,
		Delay:       cfg.Discovery.Delay,
		ScanTimeout: cfg.Discovery.ScanTimeout,
		Restart:     discovery.CommandRestarter(cfg.Discovery.RestartCommand),
	}, log.Component("discovery"))
	if cfg.Discovery.Enabled {
		dispatcher.SetProber(probe)
		log.Info("pre-dispatch discovery enabled", "attempts", cfg.Discovery.Attempts)
	}

	apiDeps := api.Deps{
		Config:     cfg.API,
		Security:   cfg.Security,
		Logger:     log.Component("api"),
		Dispatcher: dispatcher,
		Registry:   registry,
		Link:       dialer,
		Prober:     probe,
		Transport:  transport.Name(),
		Version:    version,
	}

	if gw, ok := transport.(*link.MQTTTransport); ok {
		apiDeps.Gateway = gw
	}

	if db != nil {
		repo := audit.NewSQLiteRepository(db.DB)
		dispatcher.AddObserver(audit.NewRecorder(repo))
		apiDeps.Audit = repo
		apiDeps.Database = db
	}

	if mqttClient != nil {
		publisher := statepub.NewPublisher(mqttClient, statepub.Options{
			Topics: mqttClient.Topics(),
			QoS:    byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		}, log.Component("statepub"))
		dispatcher.AddObserver(publisher)
		apiDeps.States = publisher
		apiDeps.MQTT = mqttClient
	}

	// Start scheduler (if any schedules are configured)
	if len(cfg.Schedules) > 0 {
		scheduler, schedErr := buildScheduler(cfg.Schedules, dispatcher, log)
		if schedErr != nil {
			return fmt.Errorf("configuring schedules: %w", schedErr)
		}
		scheduler.Start(ctx)
		defer func() {
			log.Info("stopping scheduler")
			scheduler.Stop()
		}()
		apiDeps.Schedules = scheduler
		log.Info("scheduler started", "jobs", len(cfg.Schedules))
	}

	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal",
		"addr", apiServer.Addr(),
		"transport", transport.Name(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server
	// 2. Scheduler
	// 3. Gateway transport
	// 4. MQTT
	// 5. Database

	log.Info("AM43 Core stopped")
	return nil
}

// startTransport creates the drive transport selected by link.transport.
//
// Parameters:
//   - cfg: Application configuration
//   - mqttClient: Connected MQTT client (nil when MQTT is disabled)
//   - registry: Configured drives, used to seed the simulation
//   - log: Logger instance
//
// Returns:
//   - link.Transport: Ready transport
//   - error: If the gateway transport fails to subscribe
func startTransport(cfg *config.Config, mqttClient *mqtt.Client, registry *device.Registry, log *logging.Logger) (link.Transport, error) {
	switch cfg.Link.Transport {
	case config.TransportSimulated:
		sim := link.NewSimulatedTransport()
		for _, addr := range registry.Addresses() {
			sim.AddDrive(addr, link.SimulatedDrive{
				Position: simulatedPosition,
				Battery:  simulatedBattery,
				Light:    simulatedLight,
			})
		}
		log.Warn("using simulated drives", "devices", registry.Len())
		return sim, nil

	case config.TransportMQTT:
		if mqttClient == nil {
			return nil, fmt.Errorf("mqtt transport requires an MQTT connection")
		}
		gw := link.NewMQTTTransport(&gatewayClientAdapter{client: mqttClient}, link.GatewayConfig{
			GatewayID:      cfg.Link.GatewayID,
			Topics:         mqttClient.Topics(),
			Service:        cfg.Link.ServiceUUID,
			Characteristic: cfg.Link.CharacteristicUUID,
			RequestTimeout: cfg.Link.RequestTimeout,
			QoS:            byte(cfg.MQTT.QoS), //nolint:gosec // validated to 0..2
		})
		gw.SetLogger(log.Component("gateway"))
		if err := gw.Start(); err != nil {
			return nil, err
		}
		log.Info("BLE gateway transport started", "gateway_id", cfg.Link.GatewayID)
		return gw, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Link.Transport)
	}
}

// buildScheduler creates a scheduler holding every configured schedule.
// An invalid schedule fails startup rather than being skipped.
func buildScheduler(cfgs []config.ScheduleConfig, executor schedule.Executor, log *logging.Logger) (*schedule.Scheduler, error) {
	scheduler := schedule.NewScheduler(executor, log.Component("schedule"))
	for _, sc := range cfgs {
		job, err := schedule.JobFromConfig(sc)
		if err != nil {
			return nil, err
		}
		if err := scheduler.Add(job); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

// gatewayClientAdapter adapts the infrastructure MQTT client to the
// gateway transport's MQTTClient interface. The handler parameter differs
// only by its named type.
type gatewayClientAdapter struct {
	client *mqtt.Client
}

// Publish implements link.MQTTClient.
func (a *gatewayClientAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements link.MQTTClient.
func (a *gatewayClientAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, mqtt.MessageHandler(handler))
}

// Unsubscribe implements link.MQTTClient.
func (a *gatewayClientAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// Ensure the adapter satisfies the transport's client interface.
var _ link.MQTTClient = (*gatewayClientAdapter)(nil)
