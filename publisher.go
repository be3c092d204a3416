package main

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
)

// LimitAlert is the message sent when a user's spend in one of the five
// limited categories crosses (or nears) the configured limit.
type LimitAlert struct {
	UserID   int    `json:"user_id"`
	Category string `json:"category"`
	Spent    int    `json:"spent"`
	Limit    int    `json:"limit"`
	Message  string `json:"message"`
}

type NotificationPublisher interface {
	Publish(alert LimitAlert) error
}

// RabbitMQPublisher is an implementation of NotificationPublisher using RabbitMQ
type RabbitMQPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func NewRabbitMQPublisher(rabbitMQURL string) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(rabbitMQURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	// Durable queue so alerts survive broker restarts.
	queue, err := ch.QueueDeclare(
		"limit_alerts",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &RabbitMQPublisher{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// Publish sends a limit alert to the RabbitMQ queue.
func (p *RabbitMQPublisher) Publish(alert LimitAlert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return err
	}

	err = p.channel.Publish(
		"",
		p.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return err
	}

	logrus.Infof("limit alert published for user %d (%s)", alert.UserID, alert.Category)
	return nil
}

// Close releases RabbitMQ resources.
func (p *RabbitMQPublisher) Close() {
	p.channel.Close()
	p.conn.Close()
}
