// Package app wires the camera pipeline, the service connection and the
// optional local surfaces into one running gesturecast instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/ayusman/gesturecast/internal/capture"
	"github.com/ayusman/gesturecast/internal/config"
	"github.com/ayusman/gesturecast/internal/detector"
	"github.com/ayusman/gesturecast/internal/overlay"
	"github.com/ayusman/gesturecast/internal/publish"
	"github.com/ayusman/gesturecast/internal/recorder"
	"github.com/ayusman/gesturecast/internal/server"
	"github.com/ayusman/gesturecast/internal/store"
	"github.com/ayusman/gesturecast/internal/stream"
	"github.com/ayusman/gesturecast/internal/tray"
)

// Options overrides parts of the App built from the configuration.
type Options struct {
	// ConfigPath is watched for error label changes. Empty disables reloading.
	ConfigPath string
	Camera     capture.Camera
	Detector   detector.Detector
}

// Status is the document served at /api/status.
type Status struct {
	Display overlay.Snapshot `json:"display"`
	Stream  stream.Stats     `json:"stream"`
	Capture ControllerStats  `json:"capture"`
	MQTT    *publish.Stats   `json:"mqtt,omitempty"`
	RawLog  string           `json:"raw_log,omitempty"`
}

// App owns the camera, the connection and the overlay for one session.
type App struct {
	cfg        *config.Config
	configPath string

	camera     capture.Camera
	detector   detector.Detector
	canvas     *overlay.Canvas
	display    *overlay.Display
	client     *stream.Client
	controller *Controller

	store     *store.Store
	recorder  *recorder.Writer
	publisher *publish.Publisher
	server    *server.Server
	tray      *tray.Tray

	closeOnce sync.Once
}

// New builds an App from cfg. Nothing is started until Run.
func New(cfg *config.Config, opts Options) (*App, error) {
	url, err := stream.EndpointURL(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}

	a := &App{
		cfg:        cfg,
		configPath: opts.ConfigPath,
		camera:     opts.Camera,
		detector:   opts.Detector,
		canvas:     overlay.NewCanvas(),
		display:    overlay.NewDisplay(),
		client:     stream.NewClient(streamConfig(url, cfg.Stream)),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Config{
			DeviceID: cfg.Camera.DeviceID,
			Width:    cfg.Camera.Width,
			Height:   cfg.Camera.Height,
		})
	}
	if a.detector == nil {
		a.detector = NewDetector(cfg.Detector)
	}

	a.controller = NewController(ControllerConfig{
		Camera:      a.camera,
		Detector:    a.detector,
		Sender:      a.client,
		Renderer:    a.canvas,
		Labels:      a.display,
		ErrorLabels: cfg.ErrorLabels,
	})

	if cfg.RawLog.Enabled {
		w, err := recorder.NewWriter(cfg.RawLogDir())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("traffic log: %w", err)
		}
		a.recorder = w
		a.client.SetTap(w)
		log.Printf("Recording traffic to %s", w.Path())
	}

	if cfg.MQTT.Broker != "" {
		a.publisher = publish.New(publish.Config{
			Broker:   cfg.MQTT.Broker,
			Topic:    cfg.MQTT.Topic,
			QoS:      cfg.MQTT.QoS,
			ClientID: cfg.MQTT.ClientID,
		})
	}

	if cfg.Listen != "" {
		st, err := openStore(cfg)
		if err != nil {
			log.Printf("Sample store unavailable: %v", err)
		} else {
			a.store = st
		}

		staticDir := cfg.StaticDir
		if staticDir == "" {
			staticDir = findWebDir(cfg.DataDir)
		}
		a.server = server.New(server.Config{
			StaticDir: staticDir,
			Store:     a.store,
			Capture:   a,
			Display:   a.display,
			Frames:    a.canvas,
			Status:    func() any { return a.Status() },
		})
	}

	if cfg.Tray {
		a.tray = tray.New()
	}

	return a, nil
}

// NewDetector returns the MediaPipe detector, or a mock detector that never
// sees a hand when MediaPipe is unavailable.
func NewDetector(cfg config.DetectorConfig) detector.Detector {
	dc := detector.DefaultConfig()
	if cfg.MaxHands > 0 {
		dc.MaxHands = cfg.MaxHands
	}
	if cfg.MinConfidence > 0 {
		dc.MinConfidence = cfg.MinConfidence
	}
	if cfg.MinTrackingConf > 0 {
		dc.MinTrackingConf = cfg.MinTrackingConf
	}
	if cfg.IdleTimeout > 0 {
		dc.IdleTimeout = cfg.IdleTimeout
	}
	dc.Script = cfg.Script
	dc.Python = cfg.Python

	mp, err := detector.NewMediaPipeDetector(dc)
	if err != nil {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		return detector.NewMockDetector()
	}
	log.Println("Using MediaPipe hand detection")
	return mp
}

func streamConfig(url string, sc config.StreamConfig) stream.Config {
	c := stream.DefaultConfig(url)
	if sc.ReconnectDelay > 0 {
		c.ReconnectDelay = sc.ReconnectDelay
	}
	if sc.HandshakeTimeout > 0 {
		c.HandshakeTimeout = sc.HandshakeTimeout
	}
	if sc.WriteTimeout > 0 {
		c.WriteTimeout = sc.WriteTimeout
	}
	return c
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return store.New(cfg.DatabasePath())
}

// Run connects to the service and serves the enabled surfaces until ctx is
// done or the tray asks to quit. Resources are released before it returns.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer a.Close()

	a.client.OnStateChange(a.display.SetConnection)
	a.client.OnMessage(a.controller.HandleMessage)
	a.controller.OnPrediction(a.onPrediction)

	if a.publisher != nil {
		go func() {
			if err := a.publisher.Connect(); err != nil {
				log.Printf("mqtt: %v", err)
			}
		}()
		go a.publisher.Run(ctx)
	}

	if err := a.client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if a.configPath != "" {
		go func() {
			err := config.Watch(ctx, a.configPath, func(c *config.Config) {
				a.controller.SetErrorLabels(c.ErrorLabels)
			})
			if err != nil {
				log.Printf("config watch disabled: %v", err)
			}
		}()
	}

	if a.cfg.Autostart {
		if err := a.Start(); err != nil {
			log.Printf("Autostart failed: %v", err)
		}
	}

	serverDone := make(chan error, 1)
	if a.server != nil {
		go func() {
			log.Printf("Serving viewer on http://%s", a.cfg.Listen)
			serverDone <- a.server.Run(ctx, a.cfg.Listen)
		}()
	}

	if a.tray != nil {
		a.runTray(ctx, cancel)
	}

	select {
	case <-ctx.Done():
		if a.server != nil {
			<-serverDone
		}
		return nil
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	}
}

// runTray blocks in the tray loop until ctx is done or Quit is chosen.
func (a *App) runTray(ctx context.Context, cancel context.CancelFunc) {
	unsubscribe := a.display.Subscribe(a.tray.Update)
	defer unsubscribe()
	a.tray.Update(a.display.Snapshot())
	a.tray.SetRunning(a.controller.Running())

	a.tray.OnToggle(func(running bool) {
		if running {
			if err := a.Start(); err != nil {
				log.Printf("Failed to start camera: %v", err)
			}
			return
		}
		a.Stop()
	})
	a.tray.OnViewer(func() {
		if a.server == nil {
			log.Println("Viewer disabled: listen address is empty")
			return
		}
		if err := openBrowser(viewerURL(a.cfg.Listen)); err != nil {
			log.Printf("Failed to open viewer: %v", err)
		}
	})
	a.tray.OnQuit(cancel)

	go func() {
		<-ctx.Done()
		a.tray.Quit()
	}()
	a.tray.Run()
}

func (a *App) onPrediction(label string) {
	if a.publisher != nil {
		a.publisher.Notify(label)
	}
	if a.tray != nil {
		a.tray.SetLastGesture(label)
	}
}

// Start starts the camera pipeline.
func (a *App) Start() error {
	err := a.controller.Start()
	a.syncTray()
	return err
}

// Stop stops the camera pipeline.
func (a *App) Stop() {
	a.controller.Stop()
	a.syncTray()
}

// Running reports whether the camera pipeline is running.
func (a *App) Running() bool {
	return a.controller.Running()
}

func (a *App) syncTray() {
	if a.tray != nil {
		a.tray.SetRunning(a.controller.Running())
	}
}

// Status returns a snapshot of every component.
func (a *App) Status() Status {
	s := Status{
		Display: a.display.Snapshot(),
		Stream:  a.client.Stats(),
		Capture: a.controller.Stats(),
	}
	if a.publisher != nil {
		ps := a.publisher.Stats()
		s.MQTT = &ps
	}
	if a.recorder != nil {
		s.RawLog = a.recorder.Path()
	}
	return s
}

// Display returns the status and label surface.
func (a *App) Display() *overlay.Display {
	return a.display
}

// Controller returns the frame pipeline controller.
func (a *App) Controller() *Controller {
	return a.controller
}

// Close stops the camera, closes the connection and releases every resource.
// It is safe to call more than once.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.controller != nil {
			a.controller.Stop()
		}
		if err := a.client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
		if a.publisher != nil {
			a.publisher.Disconnect()
		}
		if a.recorder != nil {
			if err := a.recorder.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close traffic log: %w", err))
			}
		}
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close store: %w", err))
			}
		}
		if err := a.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
		log.Println("Shutdown complete")
	})
	return errors.Join(errs...)
}

// findWebDir searches for the viewer's static files in common locations:
// "web", "../web", "../../web" and <dataDir>/web. It returns the first
// existing directory or an empty string.
func findWebDir(dataDir string) string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	if dataDir == "" {
		return ""
	}
	homeWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}

func viewerURL(listen string) string {
	host := listen
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	host = strings.Replace(host, "0.0.0.0", "localhost", 1)
	return "http://" + host + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}
