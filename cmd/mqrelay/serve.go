package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mqrelay/config"
	"mqrelay/pkg/breaker"
	"mqrelay/pkg/cluster"
	"mqrelay/pkg/logging"
	"mqrelay/pkg/metrics"
	"mqrelay/pkg/pipeline"
	"mqrelay/pkg/relay"
	"mqrelay/pkg/retrybuf"
	"mqrelay/pkg/transport"
)

func serveCmd() *cobra.Command {
	var (
		strategy string
		nodeID   string
		ingress  string
		egress   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one relay node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			// Override config with command line flags
			if brokerAddr != "" {
				cfg.Broker.Address = brokerAddr
			}
			if strategy != "" {
				cfg.Relay.Strategy = strategy
			}
			if nodeID != "" {
				cfg.Cluster.NodeID = nodeID
			}
			if ingress != "" {
				cfg.Relay.IngressTopic = ingress
			}
			if egress != "" {
				cfg.Relay.EgressTopic = egress
			}

			return runServe(cfg)
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "Fault-tolerance strategy: breaker, pipeline, or cluster")
	cmd.Flags().StringVar(&nodeID, "node-id", "", "Node ID for the cluster strategy")
	cmd.Flags().StringVar(&ingress, "ingress", "", "Ingress topic (overrides config)")
	cmd.Flags().StringVar(&egress, "egress", "", "Egress topic (overrides config)")

	return cmd
}

func runServe(cfg *config.Config) error {
	log, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	qos := byte(cfg.Broker.QoS)

	client, err := transport.Dial(transport.Options{
		Address:  cfg.Broker.Address,
		ClientID: fmt.Sprintf("%s-%s", cfg.Broker.ClientIDPrefix, uuid.NewString()[:8]),
	})
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	defer client.Close()

	if err := client.Subscribe(cfg.Relay.IngressTopic, qos); err != nil {
		return err
	}

	m := metrics.NewRelay()
	forward := relay.EgressForwarder(client, cfg.Relay.EgressTopic, qos)

	strategy, err := buildStrategy(cfg, client, forward, qos, log, m)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("received shutdown signal")
		cancel()
	}()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Port, cfg.Metrics.Path, m.Handler()); err != nil {
				log.Warn("metrics listener failed", zap.Error(err))
			}
		}()
	}

	log.Info("starting relay node",
		zap.String("strategy", cfg.Relay.Strategy),
		zap.String("broker", cfg.Broker.Address),
		zap.String("ingress", cfg.Relay.IngressTopic),
		zap.String("egress", cfg.Relay.EgressTopic))

	r := relay.New(client, strategy, cfg.PollInterval(), log, m)
	return r.Run(ctx)
}

func buildStrategy(cfg *config.Config, client *transport.MQTT, forward relay.Forwarder, qos byte, log *logging.Logger, m *metrics.Relay) (relay.Strategy, error) {
	switch cfg.Relay.Strategy {
	case "breaker":
		b := breaker.New(breaker.Settings{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
			ResetTimeout:     cfg.ResetTimeout(),
		})
		buf := retrybuf.New(cfg.RetryInterval(), cfg.Retry.Capacity)
		return relay.NewBreakerStrategy(b, buf, forward, log, m), nil

	case "pipeline":
		sup := pipeline.NewFactorySupervisor()
		faultCadence := cfg.Pipeline.FaultCadence
		sup.Register("validation", func() pipeline.Stage {
			return pipeline.NewValidationStage()
		})
		sup.Register("transformation", func() pipeline.Stage {
			return pipeline.NewTransformationStage(
				pipeline.WithFaultInjector(&pipeline.CadenceFaults{Every: faultCadence}),
			)
		})
		pipe := pipeline.Default(&pipeline.CadenceFaults{Every: faultCadence})
		return relay.NewPipelineStrategy(pipe, sup, forward, log, m), nil

	case "cluster":
		// A cluster node also listens on its own leader topic so payloads
		// forwarded by followers reach it once it leads.
		if err := client.Subscribe(cluster.LeaderTopic(cfg.Cluster.NodeID), qos); err != nil {
			return nil, err
		}
		node := cluster.NewNode(
			cluster.Config{
				NodeID:            cfg.Cluster.NodeID,
				SeedID:            cfg.Cluster.SeedID,
				Peers:             cfg.Cluster.Peers,
				FailureCheckEvery: cfg.Cluster.FailureCheckEvery,
			},
			func(p []byte) ([]byte, error) { return p, nil },
			cluster.NewBrokerNotifier(client, qos),
			log,
		)
		return relay.NewClusterStrategy(node, forward, log, m), nil

	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Relay.Strategy)
	}
}
