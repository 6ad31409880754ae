package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"github.com/statetreelib/go-statetree/stree"
)

// stateChange is the message published whenever a branch's effective state
// differs from the previous pass.
type stateChange struct {
	Aggregation string    `json:"aggregation"`
	Branch      string    `json:"branch"`
	State       int       `json:"state"`
	StateName   string    `json:"state_name"`
	Previous    int       `json:"previous"`
	Output      string    `json:"output"`
	ChangedAt   time.Time `json:"changed_at"`
}

// publisher pushes branch state transitions onto a NATS subject. A nil
// publisher drops everything, so callers need no guard when publishing is
// disabled.
type publisher struct {
	conn    *nats.Conn
	subject string
	log     *logrus.Entry
	// last effective state per aggregation/branch pair
	last map[string]stree.State
}

func newPublisher(cfg NATSConfig, log *logrus.Entry) (*publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	conn, err := nats.Connect(cfg.URL, nats.Name("viewsd"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &publisher{
		conn:    conn,
		subject: cfg.Subject,
		log:     log,
		last:    make(map[string]stree.State),
	}, nil
}

// publish emits a state change when the branch's effective state moved
func (p *publisher) publish(aggregationID, branchTitle string, result stree.ComputeResult) {
	if p == nil {
		return
	}
	key := aggregationID + "/" + branchTitle
	previous, seen := p.last[key]
	p.last[key] = result.State
	if seen && previous == result.State {
		return
	}
	if !seen {
		previous = stree.Pending
	}

	payload, err := json.Marshal(stateChange{
		Aggregation: aggregationID,
		Branch:      branchTitle,
		State:       int(result.State),
		StateName:   stree.ServiceStateName(result.State),
		Previous:    int(previous),
		Output:      result.Output,
		ChangedAt:   time.Now().UTC(),
	})
	if err != nil {
		p.log.WithError(err).Error("encode state change")
		return
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.log.WithError(err).WithField("subject", p.subject).Error("publish state change")
	}
}

func (p *publisher) close() {
	if p == nil {
		return
	}
	p.conn.Close()
}
