package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mqrelay/config"
	"mqrelay/pkg/logging"
	"mqrelay/pkg/sensor"
	"mqrelay/pkg/transport"
)

func sendCmd() *cobra.Command {
	var (
		topic string
		mode  string
		rate  float64
		fleet int
		count int
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Publish synthetic sensor readings to the ingress topic",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if brokerAddr != "" {
				cfg.Broker.Address = brokerAddr
			}
			if topic == "" {
				topic = cfg.Relay.IngressTopic
			}
			return runSend(cfg, topic, sensor.FailureMode(mode), rate, fleet, count)
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic to publish on (defaults to the configured ingress topic)")
	cmd.Flags().StringVar(&mode, "mode", "none", "Failure mode: none, intermittent, complete, overload")
	cmd.Flags().Float64Var(&rate, "rate", 0.3, "Forced-error fraction for intermittent mode")
	cmd.Flags().IntVar(&fleet, "fleet", 100, "Number of simulated devices")
	cmd.Flags().IntVar(&count, "count", 0, "Messages to send before exiting (0 = until interrupted)")

	return cmd
}

func runSend(cfg *config.Config, topic string, mode sensor.FailureMode, rate float64, fleet, count int) error {
	switch mode {
	case sensor.ModeNone, sensor.ModeIntermittent, sensor.ModeComplete, sensor.ModeOverload:
	default:
		return fmt.Errorf("unknown failure mode %q", mode)
	}

	log := logging.NewDefault()
	defer log.Sync()

	client, err := transport.Dial(transport.Options{
		Address:  cfg.Broker.Address,
		ClientID: fmt.Sprintf("%s-send-%s", cfg.Broker.ClientIDPrefix, uuid.NewString()[:8]),
	})
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	gen := sensor.NewGenerator(fleet, time.Now().UnixNano())
	params := sensor.DefaultFailureParams()
	params.IntermittentRate = rate
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	qos := byte(cfg.Broker.QoS)

	log.Info("sender started",
		zap.String("topic", topic),
		zap.String("mode", string(mode)),
		zap.Int("fleet", fleet))

	sent := 0
	for count == 0 || sent < count {
		select {
		case <-ctx.Done():
			log.Info("sender stopped", zap.Int("sent", sent))
			return nil
		case <-time.After(params.Interval(mode)):
		}

		reading, publish := sensor.ApplyMode(gen.Next(), mode, params, rng)
		if !publish {
			continue
		}

		payload, err := reading.Marshal()
		if err != nil {
			log.Warn("encode reading", zap.Error(err))
			continue
		}
		if err := client.Publish(topic, qos, payload); err != nil {
			log.Warn("publish failed", zap.Error(err))
			continue
		}
		sent++
	}

	log.Info("sender finished", zap.Int("sent", sent))
	return nil
}
