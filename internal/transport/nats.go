package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/avvvet/naturalcheck/internal/config"
)

type handlerFunc func(ctx context.Context, data []byte) []byte

type NATSTransport struct {
	conn     *nats.Conn
	config   *config.Config
	service  *Service
	log      logrus.FieldLogger
	subs     []*nats.Subscription
	inflight sync.WaitGroup
}

func NewNATSTransport(cfg *config.Config, service *Service, logger logrus.FieldLogger) (*NATSTransport, error) {
	conn, err := nats.Connect(cfg.NatsURL,
		nats.Name(cfg.ServiceName),
		nats.Timeout(cfg.NatsTimeout),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1), // Infinite reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	logger.WithField("url", cfg.NatsURL).Info("Connected to NATS server")

	return &NATSTransport{
		conn:    conn,
		config:  cfg,
		service: service,
		log:     logger,
	}, nil
}

func (nt *NATSTransport) Start() error {
	routes := []struct {
		subject string
		handle  handlerFunc
	}{
		{nt.config.AnalyzeSubject(), nt.service.HandleAnalyze},
		{nt.config.ProbeSubject(), nt.service.HandleProbe},
		{nt.config.ModelsSubject(), nt.service.HandleModels},
		{nt.config.ReportSubject(), nt.service.HandleReport},
	}

	for _, route := range routes {
		// queue group lets several service instances share the load
		sub, err := nt.conn.QueueSubscribe(route.subject, nt.config.ServiceName, nt.respond(route.subject, route.handle))
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", route.subject, err)
		}
		nt.subs = append(nt.subs, sub)
		nt.log.WithField("subject", route.subject).Info("Subscribed to subject")
	}
	return nil
}

// respond runs each request on its own goroutine so a slow analysis does
// not block the subscription.
func (nt *NATSTransport) respond(subject string, handle handlerFunc) nats.MsgHandler {
	return func(msg *nats.Msg) {
		nt.inflight.Add(1)
		go func() {
			defer nt.inflight.Done()
			reply := handle(context.Background(), msg.Data)
			if err := msg.Respond(reply); err != nil {
				nt.log.WithError(err).WithField("subject", subject).Error("Error sending response")
			}
		}()
	}
}

// Close stops accepting requests, waits for in-flight replies and closes
// the connection.
func (nt *NATSTransport) Close() error {
	if nt.conn == nil {
		return nil
	}
	for _, sub := range nt.subs {
		if err := sub.Unsubscribe(); err != nil {
			nt.log.WithError(err).WithField("subject", sub.Subject).Warn("Failed to unsubscribe")
		}
	}
	nt.inflight.Wait()
	if err := nt.conn.Flush(); err != nil {
		nt.log.WithError(err).Warn("Failed to flush NATS connection")
	}
	nt.conn.Close()
	nt.log.Info("NATS connection closed")
	return nil
}
