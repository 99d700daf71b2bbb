// Package publish fans alerts out to Redis subscribers.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rewired-gh/tickwatch/internal/models"
)

// Config selects the Redis server and the keys alerts are written to.
type Config struct {
	Addr         string
	Password     string
	DB           int
	Channel      string
	HistoryKey   string
	HistoryLimit int
}

// Publisher publishes every alert on a pub/sub channel and keeps a capped
// list of recent alerts for late subscribers.
type Publisher struct {
	client       *redis.Client
	channel      string
	historyKey   string
	historyLimit int
}

// New connects to Redis and verifies the connection with a ping.
func New(cfg Config) (*Publisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     4,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewWithClient(rdb, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, cfg Config) *Publisher {
	if cfg.Channel == "" {
		cfg.Channel = "tickwatch:alerts"
	}
	if cfg.HistoryKey == "" {
		cfg.HistoryKey = cfg.Channel + ":history"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 100
	}
	return &Publisher{
		client:       client,
		channel:      cfg.Channel,
		historyKey:   cfg.HistoryKey,
		historyLimit: cfg.HistoryLimit,
	}
}

func (p *Publisher) Name() string { return "redis" }

// Deliver publishes alert as JSON and records it in the history list.
func (p *Publisher) Deliver(ctx context.Context, alert models.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	msg := string(payload)

	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	if err := p.client.LPush(ctx, p.historyKey, msg).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	if err := p.client.LTrim(ctx, p.historyKey, 0, int64(p.historyLimit-1)).Err(); err != nil {
		return fmt.Errorf("redis ltrim: %w", err)
	}
	return nil
}

// History returns up to limit published alerts, most recent first.
func (p *Publisher) History(ctx context.Context, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		return []models.Alert{}, nil
	}
	vals, err := p.client.LRange(ctx, p.historyKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	alerts := make([]models.Alert, 0, len(vals))
	for _, v := range vals {
		var a models.Alert
		if err := json.Unmarshal([]byte(v), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// RecentAlerts returns up to limit published alerts for asset, most recent
// first. It lets the monitor seed its history from Redis.
func (p *Publisher) RecentAlerts(asset string, limit int) ([]models.Alert, error) {
	if limit <= 0 {
		return []models.Alert{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	all, err := p.History(ctx, p.historyLimit)
	if err != nil {
		return nil, err
	}
	alerts := make([]models.Alert, 0, limit)
	for _, a := range all {
		if len(alerts) >= limit {
			break
		}
		if a.Asset == asset {
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
