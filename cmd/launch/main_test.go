package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ivaldobatista/CashflowEngine/internal/infrastructure/config"
)

func TestPublisherConfigDeclaresExchangeOnly(t *testing.T) {
	rc := config.RabbitMQ{
		Host:           "rabbit",
		Port:           5672,
		User:           "guest",
		Password:       "guest",
		VHost:          "/",
		ConnectionName: "ignored",
		Exchange:       "transactions_exchange",
		Queue:          "consolidated_transactions_queue",
		Prefetch:       4,
		ConnectTimeout: 3 * time.Second,
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
	}

	got := publisherConfig(rc)

	assert.Equal(t, connectionName, got.ConnectionName)
	assert.Equal(t, "transactions_exchange", got.Topology.Exchange)
	assert.Empty(t, got.Topology.Queue)
	assert.Zero(t, got.Topology.Prefetch)
	assert.Equal(t, 3*time.Second, got.ConnectTimeout)
	assert.Equal(t, time.Second, got.InitialBackoff)
	assert.Equal(t, 10*time.Second, got.MaxBackoff)
	assert.Contains(t, got.URL, "amqp://")
	assert.True(t, got.PublisherConfirms)
}
