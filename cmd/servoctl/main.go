// Command servoctl is the host-side client for the servo bridge. It opens the
// serial link, waits for the bridge's READY announcement, and either commands
// a single angle or sweeps through a comma-separated list.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gimbalworks/servolink/internal/config"
	"github.com/gimbalworks/servolink/internal/hostlink"
	"github.com/gimbalworks/servolink/internal/serialmux"
)

var (
	configPath = flag.String("config", config.DefaultConfigPath, "Path to JSON config file")
	port       = flag.String("port", "", "Serial port to the bridge (overrides config)")
	baud       = flag.Int("baud", 0, "Baud rate (overrides config)")
	angle      = flag.Int("angle", -1, "Single angle to command in degrees")
	sweep      = flag.String("sweep", "", "Comma-separated angles to sweep through, e.g. 90,60,120,90")
	dwell      = flag.Duration("dwell", 500*time.Millisecond, "Pause between sweep steps")
	timeout    = flag.Duration("timeout", 10*time.Second, "Overall deadline for the session")
	skipReady  = flag.Bool("skip-ready", false, "Do not wait for READY (bridge already running)")
	debugAddr  = flag.String("debug-listen", "", "Serve the serial debug routes (line tail, send form) on this address")
)

func parseSweep(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	angles := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("bad sweep angle %q: %w", p, err)
		}
		angles = append(angles, n)
	}
	return angles, nil
}

func main() {
	flag.Parse()

	if *angle < 0 && *sweep == "" {
		log.Fatal("nothing to do: pass -angle or -sweep")
	}

	settings, err := config.LoadSettings(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *port != "" {
		settings.SerialPort = *port
	}
	if *baud != 0 {
		settings.Port.BaudRate = *baud
	}

	mux, err := serialmux.NewRealSerialMux(settings.SerialPort, settings.Port)
	if err != nil {
		log.Fatalf("failed to open serial port %s: %v", settings.SerialPort, err)
	}
	defer mux.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	go func() {
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("serial monitor stopped: %v", err)
		}
	}()

	if *debugAddr != "" {
		httpMux := http.NewServeMux()
		mux.AttachAdminRoutes(httpMux)
		go func() {
			log.Printf("debug routes on %s/debug/", *debugAddr)
			if err := http.ListenAndServe(*debugAddr, httpMux); err != nil {
				log.Printf("debug server stopped: %v", err)
			}
		}()
	}

	commander := hostlink.NewCommander(mux, hostlink.Options{
		MinInterval: settings.MinInterval,
		MinStep:     settings.MinStep,
	})

	if !*skipReady {
		log.Printf("waiting for READY on %s...", settings.SerialPort)
		if err := commander.WaitReady(ctx); err != nil {
			log.Fatalf("bridge never became ready: %v", err)
		}
		log.Print("bridge is ready")
	}

	if *sweep != "" {
		angles, err := parseSweep(*sweep)
		if err != nil {
			log.Fatal(err)
		}
		replies, err := commander.Sweep(ctx, angles, *dwell)
		for i, reply := range replies {
			fmt.Printf("%3d -> %s\n", angles[i], reply)
		}
		if err != nil {
			log.Fatalf("sweep failed: %v", err)
		}
		os.Exit(0)
	}

	reply, err := commander.Command(ctx, *angle)
	if err != nil {
		log.Fatalf("command failed: %v", err)
	}
	fmt.Println(reply)
}
