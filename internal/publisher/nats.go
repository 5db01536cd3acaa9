// Package publisher streams ride stage events to NATS.
package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"ridesim/internal/transport"
)

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
	Close()
}

type NATSPublisher struct {
	nc          Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("ridesim"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Warn().Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Info().Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Info().Msg("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return New(nc, prefix, logSubjects, m), nil
}

// New wraps an established connection.
func New(nc Conn, prefix string, logSubjects bool, m PublisherMetrics) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), logSubjects: logSubjects, metrics: m}
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type EventMessage struct {
	Type            string   `json:"type"`
	Time            float64  `json:"time"`
	TransportableID string   `json:"transportableId"`
	Kind            string   `json:"kind"`
	VehicleID       string   `json:"vehicleId,omitempty"`
	Edge            string   `json:"edge,omitempty"`
	Lines           []string `json:"lines"`
	RouteLength     float64  `json:"routeLength"`
}

func Subject(prefix string, ev transport.Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, subjectToken(ev.Kind), subjectToken(ev.TransportableID))
}

func (p *NATSPublisher) PublishEvent(ev transport.Event) error {
	subject := Subject(p.prefix, ev)
	msg := EventMessage{
		Type:            string(ev.Type),
		Time:            ev.Time.Seconds(),
		TransportableID: ev.TransportableID,
		Kind:            ev.Kind,
		Edge:            ev.Edge,
		Lines:           ev.Lines,
		RouteLength:     ev.RouteLength,
	}
	if ev.VehicleID != "NULL" {
		msg.VehicleID = ev.VehicleID
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Debug().Str("subject", subject).Msg("nats publish")
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// StageEvent publishes ev and logs failures; the simulation does not stop
// for an unreachable broker.
func (p *NATSPublisher) StageEvent(ev transport.Event) {
	if err := p.PublishEvent(ev); err != nil {
		log.Error().Err(err).Str("transportable", ev.TransportableID).Str("type", string(ev.Type)).Msg("publish error")
	}
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
