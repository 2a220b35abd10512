package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinic/pharmacy/internal/infrastructure/config"
	"github.com/clinic/pharmacy/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), config.TelemetryConfig{Enabled: false, ServiceName: "pharmacy"}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Meter(MeterName))
	assert.NoError(t, p.Shutdown(context.Background()))

	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)
	assert.Same(t, base, p.BridgeLogger(base))
	base.Info("still logged")
	assert.Equal(t, 1, logs.Len())
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestStartAndEndSpan(t *testing.T) {
	rec := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "reconcile.medication")
	assert.NotEmpty(t, TraceID(ctx))
	EndSpan(span, errors.New("lot missing"))

	_, ok := StartSpan(context.Background(), "ok")
	EndSpan(ok, nil)

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Len(t, ended[0].Events(), 1)
	assert.Equal(t, codes.Ok, ended[1].Status().Code)
	assert.Empty(t, TraceID(context.Background()))
}

func newTelemetryDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.MedicationModel{}, &models.LotModel{}, &models.StockMovementModel{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestRegisterDBTracing(t *testing.T) {
	rec := withRecorder(t)
	db := newTelemetryDB(t)

	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: true, DBSystem: "sqlite", SlowQueryThresh: time.Nanosecond}, zap.NewNop()))

	ctx, parent := StartSpan(context.Background(), "test")
	var count int64
	require.NoError(t, db.WithContext(ctx).Model(&models.LotModel{}).Count(&count).Error)
	parent.End()

	var dbSpan sdktrace.ReadOnlySpan
	for _, s := range rec.Ended() {
		if s.Name() != "test" {
			dbSpan = s
		}
	}
	require.NotNil(t, dbSpan, "otelgorm span recorded")
	attrs := map[string]any{}
	for _, kv := range dbSpan.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "lots", attrs["db.sql.table"])
	assert.Equal(t, true, attrs["db.slow_query"])
}

func TestRegisterDBTracing_Disabled(t *testing.T) {
	db := newTelemetryDB(t)
	require.NoError(t, RegisterDBTracing(db, DBTracingConfig{}, nil))
	assert.Nil(t, db.Callback().Query().Get("pharmacy:annotate_query"))
}

func TestGormStockSnapshotProvider(t *testing.T) {
	db := newTelemetryDB(t)
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	med := models.MedicationModel{Code: "MED-00001", Name: "Amoxicilline"}
	med.ID = uuid.New()
	require.NoError(t, db.Create(&med).Error)

	lot := func(number string, qty int64, expiry time.Time) {
		l := models.LotModel{
			MedicationID: med.ID, LotNumber: number, Store: "retail",
			QuantityAvailable: decimal.NewFromInt(qty), QuantityInitial: decimal.NewFromInt(10),
			ExpiryDate: expiry, ReceptionDate: now, Status: "active",
		}
		l.ID = uuid.New()
		require.NoError(t, db.Create(&l).Error)
	}
	lot("A", 4, now.AddDate(0, 0, -2))
	lot("B", 0, now.AddDate(0, 0, -2))
	lot("C", 4, now.AddDate(0, 1, 0))

	for _, status := range []string{"pending", "pending", "error", "synchronized"} {
		m := models.StockMovementModel{
			Type: "loss", MedicationID: med.ID, Quantity: decimal.NewFromInt(1),
			ActorID: "u1", Status: status, RecordedAt: now,
		}
		m.ID = uuid.New()
		require.NoError(t, db.Create(&m).Error)
	}

	p := NewGormStockSnapshotProvider(db)
	p.now = func() time.Time { return now }
	snap, err := p.StockSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StockSnapshot{PendingMovements: 2, ErroredMovements: 1, ExpiredLotsStock: 1}, snap)
}
