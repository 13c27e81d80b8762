package pubsub

import (
	"context"
	"testing"

	"github.com/angelmondragon/courier-dispatch/pkg/config"
	"github.com/stretchr/testify/require"
)

func TestTopicResourceName(t *testing.T) {
	c := &Client{projectID: "proj-1"}
	require.Equal(t, "projects/proj-1/topics/push", c.topicResourceName("push"))
	require.Equal(t, "projects/other/topics/push", c.topicResourceName("projects/other/topics/push"))
	require.Empty(t, c.topicResourceName("  "))

	var nilClient *Client
	require.Empty(t, nilClient.topicResourceName("push"))
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	require.Nil(t, c.Publisher("push"))
	require.NoError(t, c.Close())
	require.Error(t, c.Ping(context.Background()))
}

func TestNewClientRequiresProject(t *testing.T) {
	_, err := NewClient(context.Background(), config.GCPConfig{}, config.PubSubConfig{NotificationTopic: "push"}, nil)
	require.ErrorIs(t, err, errProjectIDRequired)
}

func TestClientOptionsPreferInlineJSON(t *testing.T) {
	require.Len(t, clientOptions(config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`}), 1)
	require.Len(t, clientOptions(config.GCPConfig{ApplicationCredentials: "/tmp/key.json"}), 1)
	require.Empty(t, clientOptions(config.GCPConfig{}))
}
