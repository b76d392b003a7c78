package app

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/stillcam/internal/logging"
)

// connectMQTT connects to broker and keeps reconnecting in the background
// once the first connection succeeded.
func connectMQTT(broker, clientID string) (mqtt.Client, error) {
	log := logging.For("mqtt")

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("connection lost: %v", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			log.Infof("connected to %s as %s", broker, clientID)
		})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return client, nil
}
