// Copyright 2025 Oradex, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package connpool

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys from the OTel database semantic conventions.
const (
	attrKeyPoolName = "db.client.connection.pool.name"
	attrKeyState    = "db.client.connection.state"

	stateIdle = "idle"
	stateUsed = "used"
)

// poolMetrics holds the pool's OTel instruments. Instruments that fail to
// build stay nil and their recorders become no-ops, so a missing meter
// provider never breaks pool operation.
type poolMetrics struct {
	poolName string

	connCount metric.Int64UpDownCounter
	timeouts  metric.Int64Counter
	created   metric.Int64Counter
	closed    metric.Int64Counter
}

func newPoolMetrics(poolName string) *poolMetrics {
	meter := otel.Meter("github.com/oradex/oradex-go/go/pools/connpool")
	m := &poolMetrics{poolName: poolName}

	m.connCount, _ = meter.Int64UpDownCounter(
		"db.client.connection.count",
		metric.WithDescription("The number of connections that are currently in state described by the state attribute."),
		metric.WithUnit("{connection}"),
	)
	m.timeouts, _ = meter.Int64Counter(
		"db.client.connection.timeouts",
		metric.WithDescription("The number of connection timeouts that have occurred trying to obtain a connection from the pool."),
		metric.WithUnit("{timeout}"),
	)
	m.created, _ = meter.Int64Counter(
		"db.client.connection.created",
		metric.WithDescription("The number of connections created by the pool."),
		metric.WithUnit("{connection}"),
	)
	m.closed, _ = meter.Int64Counter(
		"db.client.connection.closed",
		metric.WithDescription("The number of connections closed by the pool."),
		metric.WithUnit("{connection}"),
	)
	return m
}

// recordState records a connection count change for one state.
func (m *poolMetrics) recordState(ctx context.Context, state string, delta int64) {
	if m.connCount == nil {
		return
	}
	m.connCount.Add(ctx, delta, metric.WithAttributes(
		attribute.String(attrKeyPoolName, m.poolName),
		attribute.String(attrKeyState, state),
	))
}

func (m *poolMetrics) recordTimeout(ctx context.Context) {
	if m.timeouts == nil {
		return
	}
	m.timeouts.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKeyPoolName, m.poolName)))
}

func (m *poolMetrics) recordCreated(ctx context.Context, n int64) {
	if m.created == nil {
		return
	}
	m.created.Add(ctx, n, metric.WithAttributes(attribute.String(attrKeyPoolName, m.poolName)))
}

func (m *poolMetrics) recordClosed(ctx context.Context, n int64) {
	if m.closed == nil {
		return
	}
	m.closed.Add(ctx, n, metric.WithAttributes(attribute.String(attrKeyPoolName, m.poolName)))
}
