// Command servod is the servo bridge daemon. It owns the serial link to the
// host, runs the command interpreter against the configured actuator, logs
// every handled command to sqlite, and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gimbalworks/servolink/internal/actuator"
	"github.com/gimbalworks/servolink/internal/api"
	"github.com/gimbalworks/servolink/internal/config"
	"github.com/gimbalworks/servolink/internal/db"
	"github.com/gimbalworks/servolink/internal/interp"
	"github.com/gimbalworks/servolink/internal/monitoring"
	"github.com/gimbalworks/servolink/internal/serialmux"
	"github.com/gimbalworks/servolink/internal/timeutil"
	"github.com/gimbalworks/servolink/internal/version"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "Path to JSON config file")
	devMode    = flag.Bool("dev", false, "Run in dev mode: stdin/stdout instead of a serial port, sim actuator")
	listen     = flag.String("listen", "", "Listen address (overrides config)")
	port       = flag.String("port", "", "Serial port to the host (overrides config)")
	dbPath     = flag.String("db", "", "Path to sqlite database (overrides config)")
	runMigrate = flag.Bool("migrate", false, "Apply pending schema migrations before starting")
)

// injected is a command line queued from the HTTP API or a preset, tagged
// with its origin for the command log.
type injected struct {
	line   string
	source string
}

func main() {
	flag.Parse()

	settings, err := config.LoadSettings(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *listen != "" {
		settings.Listen = *listen
	}
	if *port != "" {
		settings.SerialPort = *port
	}
	if *dbPath != "" {
		settings.DBPath = *dbPath
	}
	if *devMode {
		settings.Actuator = config.ActuatorSim
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open the transport to the host: a real serial port, or stdin/stdout in
	// dev mode so commands can be typed interactively.
	var reader io.Reader
	var writer io.Writer
	if *devMode {
		reader = os.Stdin
		writer = os.Stdout
	} else {
		serialPort, err := serialmux.OpenPort(settings.SerialPort, settings.Port)
		if err != nil {
			log.Fatalf("failed to open serial port %s: %v", settings.SerialPort, err)
		}
		defer serialPort.Close()
		reader = serialPort
		writer = serialPort
		log.Printf("opened serial port %s", settings.SerialPort)
	}

	var mover actuator.Mover
	switch settings.Actuator {
	case config.ActuatorFeetech:
		servo, err := actuator.NewFeetech(ctx, actuator.FeetechConfig{
			Port:     settings.BusPort,
			BaudRate: settings.BusBaud,
			ServoID:  settings.ServoID,
			RawMin:   settings.ServoRawMin,
			RawMax:   settings.ServoRawMax,
		})
		if err != nil {
			log.Fatalf("failed to open servo bus %s: %v", settings.BusPort, err)
		}
		defer servo.Close()
		mover = servo
		log.Printf("driving servo %d on %s", settings.ServoID, settings.BusPort)
	case config.ActuatorSim:
		mover = actuator.NewSim(settings.DefaultAngle)
		log.Print("driving simulated actuator")
	}
	act := actuator.NewInstrumented(mover, timeutil.RealClock{})

	database, err := db.NewDB(settings.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	if *runMigrate {
		if err := database.MigrateUp(settings.MigrationsDir); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
		log.Print("migrations applied")
	}

	state := api.NewState(settings.DefaultAngle)

	// source tracks the origin of the line currently being handled. It is
	// written only by the interpreter goroutine, before each Handle call, so
	// the OnEvent callback can tag the command log correctly.
	source := db.SourceSerial
	in := interp.New(act, writer, interp.Config{
		DefaultAngle: settings.DefaultAngle,
		SettleDelay:  settings.SettleDelay,
		OnEvent: func(ev interp.Event) {
			var angle *int
			result := monitoring.ResultFormat
			if ev.Accepted {
				angle = &ev.Angle
				result = monitoring.ResultOK
				monitoring.SetCommandedAngle(ev.Angle)
			} else if ev.Response == interp.RangeErrLine {
				result = monitoring.ResultRange
			}
			monitoring.RecordCommand(result)

			if _, err := database.RecordCommand(source, ev.Line, ev.Response, angle); err != nil {
				log.Printf("failed to record command: %v", err)
			}
			state.RecordEvent(source, ev)
		},
	})

	var wg sync.WaitGroup

	// Pump transport bytes into a channel so the interpreter goroutine can
	// select between them and API injections. Not in the wait group: a Read
	// can block until the port is closed on the way out.
	bytesCh := make(chan byte, 256)
	go func() {
		defer close(bytesCh)
		buf := make([]byte, 64)
		for {
			n, err := reader.Read(buf)
			for _, c := range buf[:n] {
				select {
				case bytesCh <- c:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF && ctx.Err() == nil {
					log.Printf("serial read error: %v", err)
				}
				return
			}
		}
	}()

	injectCh := make(chan injected, 16)
	inject := func(line, src string) error {
		select {
		case injectCh <- injected{line: line, source: src}:
			return nil
		default:
			return errors.New("interpreter queue full")
		}
	}

	// Interpreter goroutine: the single owner of the interpreter. It runs the
	// startup sequence, then multiplexes transport bytes and injected lines.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := in.Start(); err != nil {
			log.Printf("startup move failed: %v", err)
		}
		state.SetReady()
		monitoring.SetCommandedAngle(in.Angle())
		log.Printf("ready at %d degrees", in.Angle())

		for {
			select {
			case c, ok := <-bytesCh:
				if !ok {
					log.Print("transport closed, interpreter stopping")
					return
				}
				source = db.SourceSerial
				in.ProcessByte(c)
			case inj := <-injectCh:
				source = inj.source
				in.HandleLine(inj.line)
			case <-ctx.Done():
				log.Print("interpreter routine terminated")
				return
			}
		}
	}()

	// HTTP server goroutine.
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		mux.Handle("/api/", http.StripPrefix("/api", api.NewServer(state, database, inject).ServeMux()))
		mux.Handle("/metrics", monitoring.MetricsHandler())
		database.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:    settings.Listen,
			Handler: mux,
		}

		go func() {
			log.Printf("servod %s listening on %s", version.Version, settings.Listen)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			if err := server.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
