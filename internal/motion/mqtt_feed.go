package motion

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/relabs-tech/stillcam/internal/logging"
)

// MQTTFeed delivers samples published on an MQTT topic (see the
// accel_producer process). The producer may publish faster than the
// requested interval, so delivery is throttled per subscriber.
type MQTTFeed struct {
	client mqtt.Client
	topic  string
	log    *logrus.Entry

	// ackTimeout bounds the UNSUBACK wait. release runs on the event loop
	// while paho's router may be blocked posting a sample to it.
	ackTimeout time.Duration

	topicMu  sync.Mutex
	mu       sync.Mutex
	interval time.Duration
	subs     map[*mqttSub]struct{}
}

// NewMQTTFeed creates a feed over an already connected client.
func NewMQTTFeed(client mqtt.Client, topic string) *MQTTFeed {
	return &MQTTFeed{
		client:     client,
		topic:      topic,
		log:        logging.For("motion-mqtt"),
		ackTimeout: 2 * time.Second,
		interval:   500 * time.Millisecond,
		subs:       make(map[*mqttSub]struct{}),
	}
}

// SetInterval sets the minimum spacing between delivered samples.
func (f *MQTTFeed) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interval = d
	for s := range f.subs {
		s.limiter.SetLimit(rate.Every(d))
	}
}

// Subscribe registers fn. The broker subscription is taken on the first
// subscriber and dropped with the last.
func (f *MQTTFeed) Subscribe(fn func(Sample)) (Subscription, error) {
	if fn == nil {
		return nil, fmt.Errorf("motion: nil sample callback")
	}

	// topicMu serializes broker (un)subscribes; mu is never held across a
	// token wait.
	f.topicMu.Lock()
	defer f.topicMu.Unlock()

	f.mu.Lock()
	s := &mqttSub{
		feed:    f,
		fn:      fn,
		limiter: rate.NewLimiter(rate.Every(f.interval), 1),
	}
	first := len(f.subs) == 0
	f.mu.Unlock()

	if first {
		token := f.client.Subscribe(f.topic, 0, f.handle)
		token.Wait()
		if token.Error() != nil {
			return nil, fmt.Errorf("motion: subscribe %s: %w", f.topic, token.Error())
		}
		f.log.Infof("subscribed to %s", f.topic)
	}

	f.mu.Lock()
	f.subs[s] = struct{}{}
	f.mu.Unlock()
	return s, nil
}

func (f *MQTTFeed) handle(_ mqtt.Client, msg mqtt.Message) {
	var sample Sample
	if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
		f.log.Warnf("sample unmarshal error: %v", err)
		return
	}

	f.mu.Lock()
	targets := make([]*mqttSub, 0, len(f.subs))
	for s := range f.subs {
		if s.limiter.Allow() {
			targets = append(targets, s)
		}
	}
	f.mu.Unlock()

	for _, s := range targets {
		s.fn(sample)
	}
}

func (f *MQTTFeed) release(s *mqttSub) {
	f.topicMu.Lock()
	defer f.topicMu.Unlock()

	f.mu.Lock()
	if _, ok := f.subs[s]; !ok {
		f.mu.Unlock()
		return
	}
	delete(f.subs, s)
	last := len(f.subs) == 0
	f.mu.Unlock()

	if !last {
		return
	}
	token := f.client.Unsubscribe(f.topic)
	if !token.WaitTimeout(f.ackTimeout) {
		f.log.Warnf("unsubscribe %s: no ack after %s", f.topic, f.ackTimeout)
		return
	}
	if token.Error() != nil {
		f.log.Warnf("unsubscribe %s: %v", f.topic, token.Error())
		return
	}
	f.log.Infof("unsubscribed from %s", f.topic)
}

type mqttSub struct {
	feed    *MQTTFeed
	fn      func(Sample)
	limiter *rate.Limiter
	once    sync.Once
}

func (s *mqttSub) Release() {
	s.once.Do(func() { s.feed.release(s) })
}
