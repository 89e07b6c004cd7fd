// Package alerts delivers drift alerts over MQTT so downstream consumers
// (dashboards, the training pipeline) can react to model degradation.
package alerts

import (
	"context"
	"encoding/json"

	"github.com/parkfan/waitwatch-go/internal/accuracy"
	"github.com/parkfan/waitwatch-go/internal/conf"
	"github.com/parkfan/waitwatch-go/internal/errors"
	"github.com/parkfan/waitwatch-go/internal/logging"
	"github.com/parkfan/waitwatch-go/internal/mqtt"
)

// DriftPublisher publishes drift snapshots to a fixed MQTT topic. It
// implements accuracy.AlertPublisher.
type DriftPublisher struct {
	client mqtt.Client
	topic  string
}

// NewDriftPublisher creates a publisher over an already constructed MQTT
// client. Callers gate construction on settings.MQTT.Enabled.
func NewDriftPublisher(settings *conf.Settings, client mqtt.Client) *DriftPublisher {
	return &DriftPublisher{
		client: client,
		topic:  settings.MQTT.Topic,
	}
}

// PublishDriftAlert serializes the snapshot and publishes it. Connecting is
// lazy, a broker outage surfaces as a publish error rather than blocking
// startup.
func (p *DriftPublisher) PublishDriftAlert(ctx context.Context, snapshot *accuracy.DriftSnapshot) error {
	if !p.client.IsConnected() {
		if err := p.client.Connect(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.New(err).
			Component("alerts").
			Category(errors.CategoryMQTTPublish).
			Context("topic", p.topic).
			Build()
	}

	if err := p.client.Publish(ctx, p.topic, string(payload)); err != nil {
		return err
	}

	logging.Info("Published drift alert",
		"topic", p.topic,
		"status", snapshot.Status,
		"model_version", snapshot.ModelVersion)
	return nil
}
