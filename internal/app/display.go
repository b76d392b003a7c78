package app

import (
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/stillcam/internal/capture"
	"github.com/relabs-tech/stillcam/internal/config"
	"github.com/relabs-tech/stillcam/internal/logging"
	"github.com/relabs-tech/stillcam/internal/overlay"
)

const (
	displayWidth  = 128
	displayHeight = 64
	displayChars  = displayWidth / 7
)

// RunDisplay mirrors the session state published on MQTT onto an SSD1306:
// state and hint text plus the face overlay scaled to the panel.
func RunDisplay() error {
	cfg := config.Get()
	log := logging.For("display")

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to initialize periph: %w", err)
	}

	bus, err := i2creg.Open("")
	if err != nil {
		return fmt.Errorf("failed to open I2C bus: %w", err)
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	defer dev.Halt()

	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))
	drawLines(img, "stillcam", "", "Waiting...")
	if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
		log.Warnf("error showing splash: %v", err)
	}

	var (
		mu   sync.Mutex
		snap *capture.Snapshot
	)

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	token := client.Subscribe(cfg.TopicSessionState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s capture.Snapshot
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Warnf("state unmarshal error: %v", err)
			return
		}
		mu.Lock()
		snap = &s
		mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Infof("subscribed to %s", cfg.TopicSessionState)

	interval := time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("starting update loop")
	var shown *capture.Snapshot
	for range ticker.C {
		mu.Lock()
		current := snap
		mu.Unlock()
		if current == nil || current == shown {
			continue
		}
		shown = current

		renderStatus(img, *current, cfg.DisplayPreviewWidth)
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Warnf("error updating display: %v", err)
		}
	}
	return nil
}

// renderStatus draws the face overlay scaled from a preview previewWidth
// pixels wide, with the state on the top line and the hint at the bottom.
func renderStatus(img draw.Image, s capture.Snapshot, previewWidth int) {
	scale := float64(img.Bounds().Dx()) / float64(previewWidth)
	blank(img)
	overlay.Draw(img, overlay.Render(s.Faces), scale, image1bit.On)

	top := strings.ToUpper(string(s.State))
	if s.Captures > 0 {
		top = fmt.Sprintf("%-11s #%d", top, s.Captures)
	}
	writeLine(img, 0, 12, top)
	writeLine(img, 0, 62, s.Hint)
}

func drawLines(img draw.Image, lines ...string) {
	blank(img)
	for i, l := range lines {
		writeLine(img, 0, 13*(i+1)+4, l)
	}
}

func blank(img draw.Image) {
	draw.Draw(img, img.Bounds(), &image.Uniform{image1bit.Off}, image.Point{}, draw.Src)
}

func writeLine(img draw.Image, x, y int, text string) {
	if len(text) > displayChars {
		text = text[:displayChars]
	}
	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(text)
}
