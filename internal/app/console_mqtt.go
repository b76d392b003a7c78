package app

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/stillcam/internal/capture"
	"github.com/relabs-tech/stillcam/internal/config"
	"github.com/relabs-tech/stillcam/internal/logging"
	"github.com/relabs-tech/stillcam/internal/motion"
)

// RunConsoleMQTT prints session state, accelerometer samples and saved
// photos as they appear on the broker.
func RunConsoleMQTT() error {
	cfg := config.Get()
	log := logging.For("console")

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	subs := map[string]mqtt.MessageHandler{
		cfg.TopicSessionState: func(_ mqtt.Client, msg mqtt.Message) {
			var s capture.Snapshot
			if err := json.Unmarshal(msg.Payload(), &s); err != nil {
				log.Warnf("state unmarshal error: %v", err)
				return
			}
			fmt.Println(formatSnapshot(s))
		},
		cfg.TopicAccel: func(_ mqtt.Client, msg mqtt.Message) {
			var s motion.Sample
			if err := json.Unmarshal(msg.Payload(), &s); err != nil {
				log.Warnf("accel unmarshal error: %v", err)
				return
			}
			fmt.Printf("[ACCEL] x=%7.3f y=%7.3f z=%7.3f  (%s)\n", s.X, s.Y, s.Z, s.Source)
		},
	}
	if cfg.TopicCaptureSaved != "" {
		subs[cfg.TopicCaptureSaved] = func(_ mqtt.Client, msg mqtt.Message) {
			fmt.Printf("[PHOTO] %s\n", msg.Payload())
		}
	}

	for topic, handler := range subs {
		token := client.Subscribe(topic, 0, handler)
		token.Wait()
		if token.Error() != nil {
			return fmt.Errorf("subscribe %s: %w", topic, token.Error())
		}
		log.Infof("subscribed to %s", topic)
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	return nil
}

func formatSnapshot(s capture.Snapshot) string {
	line := fmt.Sprintf("[STATE] %-9s gate=%-5v detect=%-5v face=%-5v armed=%-5v busy=%-5v faces=%d captures=%d",
		s.State, s.GateEnabled, s.DetectingEnabled, s.FaceFound, s.CaptureArmed, s.CaptureInFlight, len(s.Faces), s.Captures)
	if s.Hint != "" {
		line += fmt.Sprintf("  %q", s.Hint)
	}
	if s.LastPhoto != nil {
		line += "  last=" + s.LastPhoto.URI
	}
	if s.LastCaptureError != "" {
		line += "  error=" + s.LastCaptureError
	}
	return line
}
