package motion

import (
	"testing"
	"time"

	"github.com/relabs-tech/stillcam/internal/mqtttest"
)

const accelTopic = "stillcam/motion/accel"

func TestMQTTFeedThrottlesAndUnsubscribes(t *testing.T) {
	client := mqtttest.NewClient()
	feed := NewMQTTFeed(client, accelTopic)
	feed.SetInterval(time.Hour)

	var got []Sample
	sub, err := feed.Subscribe(func(s Sample) { got = append(got, s) })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !client.Subscribed(accelTopic) {
		t.Fatal("expected broker subscription after first subscriber")
	}

	client.Publish(accelTopic, 0, false, `{"x":0.1,"y":0.2,"z":9.8}`)
	client.Publish(accelTopic, 0, false, `{"x":0.3,"y":0.2,"z":9.8}`)
	client.Publish(accelTopic, 0, false, `not json`)
	if len(got) != 1 {
		t.Fatalf("expected 1 delivered sample within the interval, got %d", len(got))
	}
	if got[0].X != 0.1 || got[0].Z != 9.8 {
		t.Errorf("unexpected sample %+v", got[0])
	}

	sub.Release()
	sub.Release()
	if client.Subscribed(accelTopic) {
		t.Error("expected broker unsubscribe after last release")
	}
	client.Publish(accelTopic, 0, false, `{"x":1,"y":1,"z":1}`)
	if len(got) != 1 {
		t.Errorf("expected no delivery after release, got %d samples", len(got))
	}
}

func TestMQTTFeedSharedSubscription(t *testing.T) {
	client := mqtttest.NewClient()
	feed := NewMQTTFeed(client, accelTopic)

	a, err := feed.Subscribe(func(Sample) {})
	if err != nil {
		t.Fatal(err)
	}
	b, err := feed.Subscribe(func(Sample) {})
	if err != nil {
		t.Fatal(err)
	}
	a.Release()
	if !client.Subscribed(accelTopic) {
		t.Error("expected broker subscription to survive while a subscriber remains")
	}
	b.Release()
	if client.Subscribed(accelTopic) {
		t.Error("expected broker unsubscribe after last release")
	}
}

func TestMQTTFeedRejectsNilCallback(t *testing.T) {
	feed := NewMQTTFeed(mqtttest.NewClient(), accelTopic)
	if _, err := feed.Subscribe(nil); err == nil {
		t.Error("expected error for nil callback")
	}
}

func TestMQTTFeedReleaseDoesNotHangWithoutAck(t *testing.T) {
	client := mqtttest.NewClient()
	client.StallUnsubscribe = true
	feed := NewMQTTFeed(client, accelTopic)
	feed.ackTimeout = 20 * time.Millisecond

	sub, err := feed.Subscribe(func(Sample) {})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		sub.Release()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Release to return when the unsubscribe is never acked")
	}

	// The feed can be subscribed again afterwards.
	client.StallUnsubscribe = false
	if _, err := feed.Subscribe(func(Sample) {}); err != nil {
		t.Errorf("resubscribe: %v", err)
	}
}
