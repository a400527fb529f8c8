// Package amqp publishes stored alerts to a RabbitMQ topic exchange so
// downstream consumers (dashboards, radio bridges) can subscribe by county
// and hazard.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"uzimasmart/internal/domain"
)

type Publisher struct {
	url      string
	exchange string
	log      *log.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

func Dial(url, exchange string, logger *log.Logger) (*Publisher, error) {
	p := &Publisher{url: url, exchange: exchange, log: logger}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect must be called with mu held, or before p is shared.
func (p *Publisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // kind
		true,       // durable
		false,      // auto-delete
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.conn, p.channel = conn, ch
	return nil
}

// RoutingKey is alert.{countyCode}.{alertType}.
func RoutingKey(a domain.Alert, county domain.County) string {
	code := county.Code
	if code == "" {
		code = fmt.Sprintf("%03d", a.CountyID)
	}
	return "alert." + code + "." + string(a.AlertType)
}

type alertMessage struct {
	ID          string    `json:"id"`
	ReportID    string    `json:"reportId"`
	County      string    `json:"county"`
	CountyCode  string    `json:"countyCode"`
	AlertType   string    `json:"alertType"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	ValidFrom   time.Time `json:"validFrom"`
	ValidUntil  time.Time `json:"validUntil"`
	Source      string    `json:"source"`
}

func (p *Publisher) PublishAlert(ctx context.Context, a domain.Alert, county domain.County) error {
	body, err := json.Marshal(alertMessage{
		ID:          a.ID,
		ReportID:    a.ReportID,
		County:      county.Name,
		CountyCode:  county.Code,
		AlertType:   string(a.AlertType),
		Severity:    string(a.Severity),
		Title:       a.Title,
		Description: a.Description,
		Confidence:  a.Confidence,
		ValidFrom:   a.ValidFrom,
		ValidUntil:  a.ValidUntil,
		Source:      a.Source,
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		p.log.Warn("rabbitmq connection lost, reconnecting")
		if err := p.connect(); err != nil {
			return err
		}
	}
	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		RoutingKey(a, county),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			MessageId:    a.ID,
		},
	)
	if err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil && !p.conn.IsClosed() {
		return p.conn.Close()
	}
	return nil
}
