package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/stillcam/internal/capture"
	"github.com/relabs-tech/stillcam/internal/config"
	"github.com/relabs-tech/stillcam/internal/eventloop"
	"github.com/relabs-tech/stillcam/internal/gps"
	"github.com/relabs-tech/stillcam/internal/logging"
)

// Deep enough to absorb MQTT bursts while a capture completes.
const queueSize = 256

// RunCapture runs the capture session daemon: motion gate, face detection
// and camera, with session state published on MQTT and served over HTTP.
func RunCapture() error {
	cfg := config.Get()
	log := logging.For("capture-app")
	log.Info("starting stillcam capture session")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDCapture)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	feed, err := newFeed(cfg, client)
	if err != nil {
		return fmt.Errorf("motion feed: %w", err)
	}
	detector := newDetector(cfg)
	cam, closeCamera := newCamera(cfg, client)
	defer closeCamera()

	opts := sessionOptions(cfg)
	if cfg.GPSSerialPort != "" {
		tracker := gps.NewTracker()
		go func() {
			if err := tracker.RunSerial(ctx, cfg.GPSSerialPort, cfg.GPSBaudRate); err != nil && !errors.Is(err, context.Canceled) {
				log.Warnf("gps: %v (captures will not be geotagged)", err)
			}
		}()
		opts.Locator = tracker
	}

	queue := eventloop.New(queueSize)
	session := capture.New(feed, queue, detector, cam, opts)
	defer session.Close()

	web := newWebServer(session, queue.Call)
	session.Subscribe(web.publish)
	session.Subscribe(statePublisher(client, cfg.TopicSessionState, log))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           web.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("web server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("web server: %v", err)
			stop()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := session.Start(ctx); err != nil {
		return err
	}

	log.Infof("session %s running", session.ID())
	if err := queue.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutting down")
	return nil
}

// statePublisher publishes each snapshot as a retained message. It runs
// on the loop, so it never waits for the broker.
func statePublisher(client mqtt.Client, topic string, log *logrus.Entry) func(capture.Snapshot) {
	var last capture.State
	return func(snap capture.Snapshot) {
		payload, err := json.Marshal(snap)
		if err != nil {
			log.Warnf("json marshal error (state): %v", err)
			return
		}
		client.Publish(topic, 0, true, payload)
		if snap.State != last {
			log.Infof("state %s -> %s", last, snap.State)
			last = snap.State
		}
	}
}
