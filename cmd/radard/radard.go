package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/leadfusion/internal/bus"
	"github.com/banshee-data/leadfusion/internal/config"
	"github.com/banshee-data/leadfusion/internal/db"
	"github.com/banshee-data/leadfusion/internal/fusion"
	"github.com/banshee-data/leadfusion/internal/ingest"
	"github.com/banshee-data/leadfusion/internal/monitor"
	"github.com/banshee-data/leadfusion/internal/params"
	"github.com/banshee-data/leadfusion/internal/publish"
	"github.com/banshee-data/leadfusion/internal/radar"
	"github.com/banshee-data/leadfusion/internal/recorder"
	"github.com/banshee-data/leadfusion/internal/serialmux"
	"github.com/banshee-data/leadfusion/internal/timeutil"
	"github.com/banshee-data/leadfusion/internal/version"
)

var (
	configPath  = flag.String("config", "", "Fusion tuning JSON file (empty uses built-in defaults)")
	dbPath      = flag.String("db", "leadfusion.db", "SQLite database for params, runs and the lead log")
	listen      = flag.String("listen", ":8080", "Debug HTTP listen address")
	grpcListen  = flag.String("grpc-listen", "localhost:50061", "gRPC state stream listen address (empty disables)")
	udpListen   = flag.String("udp-listen", ":8700", "UDP listen address for input envelopes (empty disables)")
	serialPort  = flag.String("serial-port", "", "Forward radar serial port (empty disables the serial radar)")
	serialBaud  = flag.Int("serial-baud", serialmux.DefaultBaudRate, "Forward radar baud rate")
	replay      = flag.String("replay", "", "Replay input envelopes from a pcap file instead of listening on UDP")
	replaySpeed = flag.Float64("replay-speed", 1.0, "Replay speed multiplier (0 replays as fast as possible)")
	historySize = flag.Int("history", 1200, "Number of cycles kept for the live lead chart")
	devMode     = flag.Bool("dev", false, "Simulate the serial radar and keep params in memory")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// Frames from the simulated radar arrive at the sensor's rate.
const devFrameInterval = 50 * time.Millisecond

var processStart = time.Now()

// monoNow is the daemon's monotonic clock in nanoseconds.
func monoNow() int64 { return int64(time.Since(processStart)) }

func loadTuning(path string) (*config.FusionConfig, error) {
	if path == "" {
		return config.EmptyFusionConfig(), nil
	}
	return config.LoadFusionConfig(path)
}

// udpPort returns the port of a listen address, or 0 when it has none.
func udpPort(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return n
}

// devFrame is one frame of a single car 30m ahead closing at 1 m/s.
func devFrame() []byte {
	return radar.EncodeFrame([]radar.Target{
		{TrackID: 1, SNR: 20, Distance: 30, Velocity: -1, Angle: 0},
	})
}

// runFusion runs one engine update per model message until ctx is done.
func runFusion(ctx context.Context, sm *bus.SubMaster, store params.Store, eng *fusion.Engine, pub *publish.Publisher) error {
	for {
		if err := sm.Wait(ctx); err != nil {
			return err
		}
		settings := params.Snapshot(ctx, store)
		pub.Publish(eng.Update(sm.Snapshot(), settings))
	}
}

func openRadarSerial(ctx context.Context) (serialmux.SerialMuxInterface, string, error) {
	switch {
	case *devMode:
		return serialmux.NewMockSerialMux(ctx, devFrame(), devFrameInterval, radar.SplitFrames), "dev", nil
	case *serialPort == "":
		return serialmux.NewDisabledSerialMux(), "", nil
	default:
		m, err := serialmux.NewRealSerialMux(*serialPort, serialmux.PortOptions{BaudRate: *serialBaud}, radar.SplitFrames)
		if err != nil {
			return nil, "", err
		}
		return m, *serialPort, nil
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Print(version.String())

	tuning, err := loadTuning(*configPath)
	if err != nil {
		log.Fatalf("failed to load fusion config: %v", err)
	}
	tuningJSON, err := json.Marshal(tuning)
	if err != nil {
		log.Fatalf("failed to encode fusion config: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	var store params.Store = params.NewDBStore(database)
	if *devMode {
		store = params.NewMemStore()
	}

	// Create a wait group for every long running routine.
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sm := bus.NewSubMaster(timeutil.RealClock{})
	eng := fusion.NewEngine(fusion.ConfigFromTuning(tuning))

	pub := publish.NewPublisher(publish.Config{ListenAddr: *grpcListen, MaxClients: publish.DefaultConfig().MaxClients})
	if err := pub.Start(); err != nil {
		log.Fatalf("failed to start publisher: %v", err)
	}
	defer pub.Stop()

	radarSerial, serialSource, err := openRadarSerial(ctx)
	if err != nil {
		log.Fatalf("failed to open radar serial port: %v", err)
	}
	defer radarSerial.Close()

	source := serialSource
	switch {
	case *replay != "":
		source = *replay
	case source == "":
		source = *udpListen
	}

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		err := radarSerial.Monitor(ctx)
		if ctx.Err() == nil {
			// The link is gone; closing the mux reports it to the radar
			// interface.
			log.Printf("serial port monitor failed: %v", err)
			radarSerial.Close()
		}
		log.Print("serial monitor routine terminated")
	}()

	// decode radar frames into scans on the bus
	wg.Add(1)
	go func() {
		defer wg.Done()
		iface := radar.NewInterface(radarSerial, func(scan fusion.RadarScan) {
			sm.PublishScan(monoNow(), scan)
		})
		if err := iface.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("radar interface stopped: %v", err)
		}
	}()

	// input envelopes, live or replayed
	switch {
	case *replay != "":
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := ingest.ReplayPCAP(ctx, *replay, sm, ingest.ReplayConfig{
				UDPPort:         udpPort(*udpListen),
				SpeedMultiplier: *replaySpeed,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("replay failed: %v", err)
			}
			if stats != nil {
				log.Printf("replayed %d packets (%d dropped)", stats.Packets(), stats.Dropped())
			}
			// The run ends with the capture.
			stop()
		}()
	case *udpListen != "":
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := ingest.NewUDPListener(ingest.UDPListenerConfig{Address: *udpListen, RcvBuf: 1 << 20, Sink: sm})
			if err := l.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("UDP listener stopped: %v", err)
			}
		}()
	}

	history := monitor.NewHistory(*historySize)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := history.Follow(ctx, pub); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("history stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		rec := recorder.New(database)
		if err := rec.Run(ctx, pub, source, string(tuningJSON)); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("recorder stopped: %v", err)
		}
	}()

	// fusion loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := runFusion(ctx, sm, store, eng, pub); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("fusion loop stopped: %v", err)
		}
		log.Print("fusion loop terminated")
	}()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		radarSerial.AttachAdminRoutes(mux)
		if err := database.AttachAdminRoutes(mux); err != nil {
			log.Printf("failed to attach database routes: %v", err)
		}
		params.AttachAdminRoutes(mux, store)
		m := &monitor.Monitor{History: history, State: pub, Topics: sm, Log: database}
		m.AttachAdminRoutes(mux)

		server := &http.Server{
			Addr:              *listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		// Wait for context cancellation to shut down server
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

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
