//go:build integration

package containers

import (
	"context"
	"testing"

	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RedpandaContainer wraps a testcontainers Redpanda broker for Kafka sink
// tests.
type RedpandaContainer struct {
	Seeds  []string
	Client *kgo.Client
	Admin  *kadm.Client
}

// NewRedpandaContainer starts a Redpanda container and connects a franz-go
// client to it. Torn down with the test.
func NewRedpandaContainer(t *testing.T) *RedpandaContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "redpandadata/redpanda:v24.1.7")
	if err != nil {
		t.Fatalf("failed to start redpanda container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	seed, err := container.KafkaSeedBroker(ctx)
	if err != nil {
		t.Fatalf("failed to get redpanda seed broker: %v", err)
	}

	client, err := kgo.NewClient(kgo.SeedBrokers(seed))
	if err != nil {
		t.Fatalf("failed to create kafka client: %v", err)
	}
	t.Cleanup(client.Close)

	return &RedpandaContainer{
		Seeds:  []string{seed},
		Client: client,
		Admin:  kadm.NewClient(client),
	}
}

// CreateTopic creates a single-partition topic.
func (r *RedpandaContainer) CreateTopic(ctx context.Context, topic string) error {
	_, err := r.Admin.CreateTopic(ctx, 1, 1, nil, topic)
	return err
}
