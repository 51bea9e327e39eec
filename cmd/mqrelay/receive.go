package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mqrelay/config"
	"mqrelay/pkg/logging"
	"mqrelay/pkg/metrics"
	"mqrelay/pkg/transport"
)

func receiveCmd() *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Consume the egress topic and expose delivery metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if brokerAddr != "" {
				cfg.Broker.Address = brokerAddr
			}
			if topic == "" {
				topic = cfg.Relay.EgressTopic
			}
			return runReceive(cfg, topic)
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic to consume (defaults to the configured egress topic)")

	return cmd
}

func runReceive(cfg *config.Config, topic string) error {
	log := logging.NewDefault()
	defer log.Sync()

	registry := prometheus.NewRegistry()
	delivered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mqrelay",
		Subsystem: "receiver",
		Name:      "delivered_total",
		Help:      "Well-formed readings consumed from the egress topic.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mqrelay",
		Subsystem: "receiver",
		Name:      "failed_total",
		Help:      "Malformed or error-status readings consumed from the egress topic.",
	})
	registry.MustRegister(delivered, failed)

	client, err := transport.Dial(transport.Options{
		Address:  cfg.Broker.Address,
		ClientID: fmt.Sprintf("%s-recv-%s", cfg.Broker.ClientIDPrefix, uuid.NewString()[:8]),
	})
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	defer client.Close()

	if err := client.Subscribe(topic, byte(cfg.Broker.QoS)); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if cfg.Metrics.Enabled {
		handler := metrics.HandlerFor(registry)
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Port, cfg.Metrics.Path, handler); err != nil {
				log.Warn("metrics listener failed", zap.Error(err))
			}
		}()
	}

	log.Info("receiver started", zap.String("topic", topic))

	for {
		select {
		case <-ctx.Done():
			log.Info("receiver stopped")
			return nil
		case msg := <-client.Messages():
			var doc map[string]interface{}
			if err := json.Unmarshal(msg.Payload, &doc); err != nil {
				failed.Inc()
				log.Warn("malformed reading", zap.Error(err))
				continue
			}
			if status, _ := doc["status"].(string); status == "forced_error" {
				failed.Inc()
				continue
			}
			delivered.Inc()
			log.Debug("reading delivered", zap.Any("device_id", doc["device_id"]))
		}
	}
}
