package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// Alert is the live-alert message published when a trigger is ingested.
type Alert struct {
	EventID      uuid.UUID `json:"event_id"`
	CampaignID   uuid.UUID `json:"campaign_id"`
	DriveID      uuid.UUID `json:"drive_id"`
	DriveCode    string    `json:"drive_code"`
	TokenType    string    `json:"token_type"`
	SourceIP     string    `json:"source_ip,omitempty"`
	Location     string    `json:"location"`
	Transitioned bool      `json:"transitioned"`
	TriggeredAt  time.Time `json:"triggered_at"`
}

// AMQPPublisher pushes alerts onto a durable broker queue for the
// alert worker and any other live subscribers.
type AMQPPublisher struct {
	ch    *amqp.Channel
	queue string
}

func NewAMQPPublisher(url, queueName string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &AMQPPublisher{ch: ch, queue: queueName}, nil
}

func (p *AMQPPublisher) Publish(payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.ch.Publish(
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}

// StartAlertRelay bridges the in-memory trigger_alerts topic to the
// broker. Alert delivery is best-effort: a dead broker never fails
// ingestion, it only logs.
func StartAlertRelay(q Queue, publisher *AMQPPublisher) {
	err := q.Subscribe(TopicTriggerAlerts, func(payload any) error {
		alert, ok := payload.(Alert)
		if !ok {
			log.Warn("alert relay: unexpected payload type")
			return nil
		}
		return publisher.Publish(alert)
	})
	if err != nil {
		log.WithError(err).Error("failed to start alert relay")
	}
}
