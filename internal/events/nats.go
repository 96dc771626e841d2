package events

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

const streamName = "BINTRADE"

// Forwarder mirrors bus events onto NATS JetStream so external
// consumers (notification fan-out, audit) see the same stream the
// websocket layer does. It is optional: the core never depends on it.
type Forwarder struct {
	nc  *nats.Conn
	js  nats.JetStreamContext
	log zerolog.Logger
}

func NewForwarder(url string, log zerolog.Logger) (*Forwarder, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}
	cfg := &nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"bintrade.events.*"},
	}
	if _, err := js.AddStream(cfg); err != nil {
		if _, err := js.UpdateStream(cfg); err != nil {
			log.Warn().Err(err).Msg("failed to create or update stream")
		}
	}
	return &Forwarder{nc: nc, js: js, log: log}, nil
}

// Run drains the bus subscription until the context is canceled.
// Publish failures are non-fatal: the in-process fan-out already ran.
func (f *Forwarder) Run(ctx context.Context, bus *Bus) {
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			subject := "bintrade.events." + evt.Type
			if _, err := f.js.Publish(subject, payload); err != nil {
				f.log.Warn().Err(err).Str("subject", subject).Msg("nats publish failed")
			}
		}
	}
}

func (f *Forwarder) Close() {
	f.nc.Close()
}
