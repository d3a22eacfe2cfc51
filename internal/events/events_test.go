package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appbuilder/internal/config"
)

type memoryPublisher struct {
	subject string
	data    []byte
	err     error
	closed  bool
}

func (m *memoryPublisher) Publish(_ context.Context, subject string, data []byte) error {
	m.subject, m.data = subject, data
	return m.err
}

func (m *memoryPublisher) Close() error {
	m.closed = true
	return nil
}

func TestNotifier_Notify(t *testing.T) {
	pub := &memoryPublisher{}
	n := NewNotifier(pub, "appbuilder.builds")

	ev := BuildEvent{
		RunID:   "5b1d",
		Profile: "prod",
		Platforms: []PlatformEvent{
			{Platform: "android", Status: "succeeded", Artifact: "build/android/App.aab", PreprocessingRan: true},
		},
		ExitCode:  0,
		StartedAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, n.Notify(context.Background(), ev))
	assert.Equal(t, "appbuilder.builds", pub.subject)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.data, &decoded))
	assert.Equal(t, "5b1d", decoded["run_id"])
	assert.NotContains(t, decoded, "source")
	platforms, ok := decoded["platforms"].([]any)
	require.True(t, ok)
	require.Len(t, platforms, 1)
	assert.Equal(t, true, platforms[0].(map[string]any)["preprocessing_ran"])

	require.NoError(t, n.Close())
	assert.True(t, pub.closed)
}

func TestNotifier_PublishError(t *testing.T) {
	n := NewNotifier(&memoryPublisher{err: errors.New("no responders")}, "s")
	err := n.Notify(context.Background(), BuildEvent{RunID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no responders")
}

func TestConnect(t *testing.T) {
	n, err := Connect(config.EventsConfig{})
	require.NoError(t, err)
	assert.Nil(t, n, "no URL disables events")

	_, err = Connect(config.EventsConfig{NATSURL: "nats://127.0.0.1:1", Subject: "s", Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
