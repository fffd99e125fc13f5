package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/stockflow-backend/pkg/config"
	"github.com/angelmondragon/stockflow-backend/pkg/logger"
)

var errNotInitialized = errors.New("pubsub client not initialized")

// topicAdmin is the slice of the topic admin API used at startup and for health checks.
type topicAdmin interface {
	GetTopic(ctx context.Context, req *pubsubpb.GetTopicRequest, opts ...gax.CallOption) (*pubsubpb.Topic, error)
	CreateTopic(ctx context.Context, req *pubsubpb.Topic, opts ...gax.CallOption) (*pubsubpb.Topic, error)
}

// Client owns the Pub/Sub connection for one project and the topics events go to.
type Client struct {
	raw     *pubsub.Client
	admin   topicAdmin
	project string
	topics  []string
}

// NewClient connects to Pub/Sub and checks that every event topic exists. With
// cfg.AutoCreateTopics missing topics are created instead. PUBSUB_EMULATOR_HOST
// is honoured by the underlying client.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	if strings.TrimSpace(cfg.FulfillmentTopic) == "" {
		return nil, errors.New("pubsub fulfillment topic is required")
	}
	var topics []string
	for _, name := range cfg.Topics() {
		topics = append(topics, TopicResourceName(project, name))
	}

	raw, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{raw: raw, admin: raw.TopicAdminClient, project: project, topics: topics}

	if err := c.ensureTopics(ctx, cfg.AutoCreateTopics); err != nil {
		_ = raw.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"project": project, "topics": c.topics}), "pubsub client initialized")
	}
	return c, nil
}

func (c *Client) ensureTopics(ctx context.Context, create bool) error {
	for _, name := range c.topics {
		_, err := c.admin.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		switch {
		case err == nil:
			continue
		case status.Code(err) != codes.NotFound:
			return fmt.Errorf("checking topic %s: %w", name, err)
		case !create:
			return fmt.Errorf("topic %s does not exist", name)
		}
		// another replica may win the race to create it
		if _, err := c.admin.CreateTopic(ctx, &pubsubpb.Topic{Name: name}); err != nil && status.Code(err) != codes.AlreadyExists {
			return fmt.Errorf("creating topic %s: %w", name, err)
		}
	}
	return nil
}

// Publisher returns a handle for a topic id or full resource name; nil if it cannot be resolved.
func (c *Client) Publisher(name string) *pubsub.Publisher {
	if c == nil || c.raw == nil {
		return nil
	}
	full := TopicResourceName(c.project, name)
	if full == "" {
		return nil
	}
	return c.raw.Publisher(full)
}

// Ping re-checks that the event topics are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.admin == nil {
		return errNotInitialized
	}
	return c.ensureTopics(ctx, false)
}

func (c *Client) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// TopicResourceName expands a bare topic id to projects/<project>/topics/<id>.
// Names already in resource form pass through.
func TopicResourceName(project, name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/") {
		return name
	}
	project = strings.TrimSpace(project)
	if name == "" || project == "" {
		return ""
	}
	return "projects/" + project + "/topics/" + name
}
