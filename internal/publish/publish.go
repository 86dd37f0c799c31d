// Package publish emits reconciliation run events over NATS JetStream
// so downstream consumers (map-update queues, review dashboards) can
// react without polling the API.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sentinelmap/signaudit/internal/reconcile"
)

const (
	streamName    = "SIGNAUDIT"
	subjectPrefix = "signaudit.run."
)

// RunEvent is the wire payload published after each reconciliation run.
type RunEvent struct {
	RunID            string    `json:"run_id"`
	CompletedAt      time.Time `json:"completed_at"`
	DetectionCount   int       `json:"detection_count"`
	GroundTruthCount int       `json:"ground_truth_count"`
	ConfirmedCount   int       `json:"confirmed_count"`
	NovelCount       int       `json:"novel_count"`
	AbsentCount      int       `json:"absent_count"`
}

// Publisher sends run events over NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS, enables JetStream, and ensures the run
// stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{subjectPrefix + ">"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist with different settings.
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishRun publishes the summary of a completed run.
func (p *Publisher) PublishRun(runID string, res *reconcile.Result, detectionCount, groundTruthCount int) error {
	confirmed, novel, absent := res.Counts()
	ev := RunEvent{
		RunID:            runID,
		CompletedAt:      time.Now().UTC(),
		DetectionCount:   detectionCount,
		GroundTruthCount: groundTruthCount,
		ConfirmedCount:   confirmed,
		NovelCount:       novel,
		AbsentCount:      absent,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}
	if _, err := p.js.Publish(subjectPrefix+runID, data); err != nil {
		return fmt.Errorf("publish run %s: %w", runID, err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
