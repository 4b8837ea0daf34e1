package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillbadge/internal/platform/kafka/producer"
	id "skillbadge/pkg/domain"
	audit "skillbadge/pkg/platform/audit"
)

type recordingProducer struct {
	msgs []*producer.Message
	err  error
}

func (p *recordingProducer) Produce(_ context.Context, msg *producer.Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestSink_Append(t *testing.T) {
	t.Run("produces JSON keyed by user", func(t *testing.T) {
		p := &recordingProducer{}
		sink := New(p, "")
		attemptID := id.NewAttemptID()

		err := sink.Append(context.Background(), audit.Event{
			UserID:    "user_1",
			AttemptID: attemptID,
			Action:    string(audit.EventBadgeIssued),
			TokenID:   "42",
		})
		require.NoError(t, err)
		require.Len(t, p.msgs, 1)

		msg := p.msgs[0]
		assert.Equal(t, DefaultTopic, msg.Topic)
		assert.Equal(t, []byte("user_1"), msg.Key)
		assert.Equal(t, "badge_issued", msg.Headers["action"])
		assert.Equal(t, attemptID.String(), msg.Headers["attempt_id"])

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, "42", decoded["token_id"])
	})

	t.Run("wraps producer failures", func(t *testing.T) {
		p := &recordingProducer{err: errors.New("broker down")}
		err := New(p, "custom").Append(context.Background(), audit.Event{UserID: "user_1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker down")
	})
}
