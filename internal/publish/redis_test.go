package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/rewired-gh/tickwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAlert() models.Alert {
	return models.Alert{
		ID:                "6f1c2b9e-0000-5000-8000-000000000000",
		Timestamp:         time.Date(2026, 3, 2, 14, 33, 10, 0, time.UTC),
		Asset:             "BTC-USD",
		Rule:              models.RuleLiquiditySweep,
		Event:             "Liquidity sweep below prior low",
		Bias:              models.BiasBull,
		Price:             98,
		TriggerLevel:      97,
		InvalidationLevel: 96.5,
		Probability:       58,
		RiskNote:          "Invalid if price loses the sweep low 96.5000",
	}
}

func alertFor(id, asset string) models.Alert {
	a := sampleAlert()
	a.ID = id
	a.Asset = asset
	return a
}

func payload(t *testing.T, a models.Alert) string {
	t.Helper()
	b, err := json.Marshal(a)
	require.NoError(t, err)
	return string(b)
}

func TestNewWithClient_Defaults(t *testing.T) {
	db, _ := redismock.NewClientMock()
	p := NewWithClient(db, Config{})
	assert.Equal(t, "tickwatch:alerts", p.channel)
	assert.Equal(t, "tickwatch:alerts:history", p.historyKey)
	assert.Equal(t, 100, p.historyLimit)
	assert.Equal(t, "redis", p.Name())
}

func TestDeliver(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewWithClient(db, Config{Channel: "alerts", HistoryKey: "alerts:recent", HistoryLimit: 50})

	msg := payload(t, sampleAlert())
	mock.ExpectPublish("alerts", msg).SetVal(2)
	mock.ExpectLPush("alerts:recent", msg).SetVal(1)
	mock.ExpectLTrim("alerts:recent", 0, 49).SetVal("OK")

	require.NoError(t, p.Deliver(context.Background(), sampleAlert()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliver_PublishError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewWithClient(db, Config{Channel: "alerts"})

	mock.ExpectPublish("alerts", payload(t, sampleAlert())).SetErr(errors.New("connection refused"))

	err := p.Deliver(context.Background(), sampleAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis publish")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewWithClient(db, Config{Channel: "alerts"})

	older := sampleAlert()
	older.ID = "older"
	mock.ExpectLRange("alerts:history", 0, 1).SetVal([]string{payload(t, sampleAlert()), payload(t, older)})

	alerts, err := p.History(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, sampleAlert().ID, alerts[0].ID)
	assert.Equal(t, "older", alerts[1].ID)
	assert.Equal(t, models.RuleLiquiditySweep, alerts[0].Rule)
	assert.True(t, alerts[0].Timestamp.Equal(sampleAlert().Timestamp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory_Errors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewWithClient(db, Config{Channel: "alerts"})

	mock.ExpectLRange("alerts:history", 0, 4).SetErr(errors.New("redis: client is closed"))
	_, err := p.History(context.Background(), 5)
	assert.Error(t, err, "lrange error")

	mock.ExpectLRange("alerts:history", 0, 4).SetVal([]string{"{broken"})
	_, err = p.History(context.Background(), 5)
	assert.Error(t, err, "unmarshal error")

	alerts, err := p.History(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentAlerts_FiltersByAssetAndLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewWithClient(db, Config{Channel: "alerts", HistoryLimit: 10})

	mock.ExpectLRange("alerts:history", 0, 9).SetVal([]string{
		payload(t, alertFor("e", "BTC-USD")),
		payload(t, alertFor("x", "ETH-USD")),
		payload(t, alertFor("d", "BTC-USD")),
		payload(t, alertFor("c", "BTC-USD")),
		payload(t, alertFor("b", "BTC-USD")),
	})

	alerts, err := p.RecentAlerts("BTC-USD", 3)
	require.NoError(t, err)
	require.Len(t, alerts, 3)
	assert.Equal(t, "e", alerts[0].ID)
	assert.Equal(t, "d", alerts[1].ID)
	assert.Equal(t, "c", alerts[2].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentAlerts_ZeroLimitSkipsRedis(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewWithClient(db, Config{Channel: "alerts"})

	alerts, err := p.RecentAlerts("BTC-USD", 0)
	require.NoError(t, err)
	assert.Empty(t, alerts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentAlerts_Error(t *testing.T) {
	db, mock := redismock.NewClientMock()
	p := NewWithClient(db, Config{Channel: "alerts", HistoryLimit: 10})

	mock.ExpectLRange("alerts:history", 0, 9).SetErr(errors.New("redis: connection pool timeout"))
	_, err := p.RecentAlerts("BTC-USD", 5)
	assert.Error(t, err)
}
