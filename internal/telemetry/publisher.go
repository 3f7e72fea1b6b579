// Package telemetry publishes the panel status to an MQTT broker.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
)

var afterFn = time.After

var dialFn = func(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

const maxBackoff = 30 * time.Second

var errShutdown = errors.New("telemetry: shutdown")

type Publisher struct {
	Broker   string
	ClientID string
	Topic    string
	Interval time.Duration
	// Timeout bounds the handshake and each publish write.
	Timeout time.Duration
	Logger  *slog.Logger

	// Snapshot is marshalled to JSON on every publish.
	Snapshot func() any
	// OnPublish, if set, reports each publish attempt.
	OnPublish func(ok bool)
}

// Run connects, publishes every Interval and reconnects with exponential
// backoff until ctx is done.
func (p *Publisher) Run(ctx context.Context) error {
	if p.Broker == "" || p.Topic == "" || p.Snapshot == nil {
		return fmt.Errorf("telemetry: broker, topic and snapshot are required")
	}
	if p.Interval <= 0 {
		p.Interval = 5 * time.Second
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Second
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}

	failures := 0
	for {
		err := p.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		failures++
		wait := backoff(failures)
		p.Logger.Error("mqtt:session-ended", slog.Any("reason", err), slog.Duration("retry_in", wait))
		p.report(false)
		select {
		case <-ctx.Done():
			return nil
		case <-afterFn(wait):
		}
	}
}

func backoff(failures int) time.Duration {
	d := time.Second
	for i := 1; i < failures && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

func (p *Publisher) report(ok bool) {
	if p.OnPublish != nil {
		p.OnPublish(ok)
	}
}

func (p *Publisher) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	conn, err := dialFn(dialCtx, p.Broker)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", p.Broker, err)
	}
	defer conn.Close()
	p.Logger.Info("tcp:connected", slog.String("broker", p.Broker))

	client := mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub: func(_ mqtt.Header, vp mqtt.VariablesPublish, _ io.Reader) error {
			p.Logger.Debug("mqtt:received", slog.String("topic", string(vp.TopicName)))
			return nil
		},
	})
	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(p.ClientID))

	_ = conn.SetDeadline(time.Now().Add(p.Timeout))
	if err := client.StartConnect(conn, &varconn); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	for !client.IsConnected() {
		if err := client.HandleNext(); err != nil {
			return fmt.Errorf("mqtt connack: %w", err)
		}
		if cerr := client.Err(); cerr != nil && !client.IsConnected() {
			return fmt.Errorf("mqtt connack: %w", cerr)
		}
	}
	p.Logger.Info("mqtt:connected", slog.String("client_id", p.ClientID))

	t := time.NewTicker(p.Interval)
	defer t.Stop()
	var packetID uint16
	publish := func() error {
		payload, err := json.Marshal(p.Snapshot())
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		packetID++
		if packetID == 0 {
			packetID = 1
		}
		_ = conn.SetDeadline(time.Now().Add(p.Timeout))
		if err := client.PublishPayload(pubFlags, mqtt.VariablesPublish{
			TopicName:        []byte(p.Topic),
			PacketIdentifier: packetID,
		}, payload); err != nil {
			return fmt.Errorf("publish: %w", err)
		}
		p.report(true)
		return nil
	}

	if err := publish(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.SetDeadline(time.Now().Add(p.Timeout))
			_ = client.Disconnect(errShutdown)
			return ctx.Err()
		case <-t.C:
			if err := publish(); err != nil {
				return err
			}
		}
	}
}
