package mqttbus

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-noticast/core"
)

type stubToken struct {
	err  error
	done chan struct{}
}

func completedToken(err error) *stubToken {
	done := make(chan struct{})
	close(done)
	return &stubToken{err: err, done: done}
}

func (t *stubToken) Wait() bool {
	<-t.done
	return true
}

func (t *stubToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *stubToken) Done() <-chan struct{} {
	return t.done
}

func (t *stubToken) Error() error {
	return t.err
}

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type stubClient struct {
	connected    bool
	publishErr   error
	pending      bool
	calls        []publishCall
	disconnected bool
}

func (c *stubClient) Connect() mqtt.Token {
	c.connected = true
	return completedToken(nil)
}

func (c *stubClient) IsConnected() bool {
	return c.connected
}

func (c *stubClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	body, _ := payload.([]byte)
	c.calls = append(c.calls, publishCall{topic: topic, qos: qos, retained: retained, payload: body})
	if c.pending {
		return &stubToken{done: make(chan struct{})}
	}
	return completedToken(c.publishErr)
}

func (c *stubClient) Disconnect(uint) {
	c.disconnected = true
	c.connected = false
}

func TestBus_PublishUsesQoSAndTopicPrefix(t *testing.T) {
	client := &stubClient{connected: true}
	bus, err := New(client, WithTopicPrefix("/noticast/"))
	if err != nil {
		t.Fatalf("new bus: %v", err)
	}

	payload := []byte(`{"message":"hi","uri":"u","published":true}`)
	if err := bus.Publish(context.Background(), "arn:device/42", payload, core.QoSAtLeastOnce); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected one publish, got %d", len(client.calls))
	}
	call := client.calls[0]
	if call.topic != "noticast/arn:device/42" || call.qos != 1 || call.retained {
		t.Fatalf("unexpected publish %+v", call)
	}
	if string(call.payload) != string(payload) {
		t.Fatalf("expected payload forwarded unchanged")
	}
}

func TestBus_PublishFailureIsExternal(t *testing.T) {
	client := &stubClient{connected: true, publishErr: errors.New("not connected")}
	bus, _ := New(client)

	err := bus.Publish(context.Background(), "noticast-messages", []byte("x"), core.QoSAtLeastOnce)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !goerrors.IsCategory(err, goerrors.CategoryExternal) {
		t.Fatalf("expected external category, got %v", err)
	}
}

func TestBus_PublishTimesOut(t *testing.T) {
	client := &stubClient{connected: true, pending: true}
	bus, _ := New(client, WithPublishTimeout(10*time.Millisecond))

	if err := bus.Publish(context.Background(), "noticast-messages", []byte("x"), core.QoSAtLeastOnce); err == nil {
		t.Fatalf("expected timeout error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus, _ = New(client, WithPublishTimeout(time.Minute))
	if err := bus.Publish(ctx, "noticast-messages", []byte("x"), core.QoSAtLeastOnce); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestBus_TopicRejectsWildcardsAndBlank(t *testing.T) {
	bus, _ := New(&stubClient{})
	for _, channel := range []string{"", "  ", "a/+/b", "a/#"} {
		if _, err := bus.Topic(channel); err == nil {
			t.Fatalf("expected channel %q rejected", channel)
		}
	}
	topic, err := bus.Topic("noticast-messages")
	if err != nil || topic != "noticast-messages" {
		t.Fatalf("unexpected topic %q err=%v", topic, err)
	}
}

func TestBus_CloseDisconnects(t *testing.T) {
	client := &stubClient{connected: true}
	bus, _ := New(client)
	bus.Close()
	if !client.disconnected {
		t.Fatalf("expected disconnect")
	}
	if _, err := New(nil); err == nil {
		t.Fatalf("expected nil client rejected")
	}
	if _, err := Dial(context.Background(), Config{}); err == nil {
		t.Fatalf("expected missing broker rejected")
	}
}
