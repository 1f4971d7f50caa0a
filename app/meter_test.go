package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/printforge/genmeter/adapters/clock"
	"github.com/printforge/genmeter/adapters/idgen"
	"github.com/printforge/genmeter/adapters/memory"
	"github.com/printforge/genmeter/domain/quota"
	"github.com/rs/zerolog"
)

func newTestService(store *memory.UsageStore, clk *clock.Fake) *MeterService {
	return NewMeterService(MeterDeps{
		Store:  store,
		Events: memory.NewEventStore(),
		Clock:  clk,
		IDGen:  idgen.NewSequential("evt_"),
		Logger: zerolog.Nop(),
	}, MeterConfig{
		Limits:           quota.Config{HourlyLimit: 3, DailyLimit: 10},
		RetentionDays:    7,
		SweepMinInterval: 24 * time.Hour,
	})
}

func testClock() *clock.Fake {
	return clock.NewFake(time.Date(2025, 1, 10, 14, 30, 0, 0, time.UTC))
}

func TestCheckQuota_UnknownUserAllowed(t *testing.T) {
	svc := newTestService(memory.NewUsageStore(), testClock())

	d, err := svc.CheckQuota(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CheckQuota: %v", err)
	}
	if !d.Allowed {
		t.Errorf("expected unknown user allowed, got denial: %s", d.Reason)
	}
}

func TestCheckQuota_InvalidUserID(t *testing.T) {
	svc := newTestService(memory.NewUsageStore(), testClock())

	for _, id := range []string{"", "   "} {
		_, err := svc.CheckQuota(context.Background(), id)
		if !errors.Is(err, ErrInvalidUserID) {
			t.Errorf("userID %q: expected ErrInvalidUserID, got %v", id, err)
		}
	}
}

func TestCheckThenRecord_HourlyLimitScenario(t *testing.T) {
	// User with limits (hourly=3, daily=10) performs 3 generations in one
	// hour; the 4th check is denied with the hourly reason even though
	// daily usage is well under 10.
	svc := newTestService(memory.NewUsageStore(), testClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := svc.CheckQuota(ctx, "user-1")
		if err != nil || !d.Allowed {
			t.Fatalf("generation %d: expected allowed, got d=%+v err=%v", i+1, d, err)
		}
		if err := svc.RecordUsage(ctx, "user-1", "wizard"); err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
	}

	d, err := svc.CheckQuota(ctx, "user-1")
	if err != nil {
		t.Fatalf("CheckQuota: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected 4th generation denied")
	}
	if d.Reason != quota.ReasonHourlyLimit {
		t.Errorf("expected hourly reason, got %q", d.Reason)
	}
	if d.DailyUsed != 3 {
		t.Errorf("expected daily used 3, got %d", d.DailyUsed)
	}
}

func TestCheckQuota_NextHourResets(t *testing.T) {
	clk := testClock()
	svc := newTestService(memory.NewUsageStore(), clk)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = svc.RecordUsage(ctx, "user-1", "wizard")
	}
	if d, _ := svc.CheckQuota(ctx, "user-1"); d.Allowed {
		t.Fatalf("expected denial within the hour")
	}

	clk.Advance(time.Hour)
	d, _ := svc.CheckQuota(ctx, "user-1")
	if !d.Allowed {
		t.Errorf("expected new hour bucket to allow, got denial: %s", d.Reason)
	}
}

func TestCheckQuota_DailyLimit(t *testing.T) {
	clk := testClock()
	svc := newTestService(memory.NewUsageStore(), clk)
	ctx := context.Background()

	// Spread 10 recordings across hours so only the daily cap binds.
	for i := 0; i < 10; i++ {
		_ = svc.RecordUsage(ctx, "user-1", "wizard")
		if (i+1)%2 == 0 {
			clk.Advance(time.Hour)
		}
	}

	d, _ := svc.CheckQuota(ctx, "user-1")
	if d.Allowed {
		t.Fatalf("expected daily denial after 10 recordings")
	}
	if d.Reason != quota.ReasonDailyLimit {
		t.Errorf("expected daily reason, got %q", d.Reason)
	}
}

func TestCheckQuota_FailsOpenWhenStoreUnreachable(t *testing.T) {
	svc := NewMeterService(MeterDeps{
		Store:  memory.FailingUsageStore{},
		Clock:  testClock(),
		IDGen:  idgen.NewSequential("evt_"),
		Logger: zerolog.Nop(),
	}, MeterConfig{
		Limits: quota.Config{HourlyLimit: 3, DailyLimit: 10},
	})

	d, err := svc.CheckQuota(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error on fail-open, got %v", err)
	}
	if !d.Allowed {
		t.Errorf("expected fail-open to allow, got denial: %s", d.Reason)
	}
	if d.Reason != "" {
		t.Errorf("store failures must not surface as quota reasons, got %q", d.Reason)
	}
}

func TestRecordUsage_MonotonicTotal(t *testing.T) {
	store := memory.NewUsageStore()
	svc := newTestService(store, testClock())
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		if err := svc.RecordUsage(ctx, "user-1", "wizard"); err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
	}

	rec, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.TotalUsage != n {
		t.Errorf("expected TotalUsage=%d after %d recordings, got %d", n, n, rec.TotalUsage)
	}
}

func TestRecordUsage_DropsOnStoreFailure(t *testing.T) {
	svc := NewMeterService(MeterDeps{
		Store:  memory.FailingUsageStore{},
		Clock:  testClock(),
		IDGen:  idgen.NewSequential("evt_"),
		Logger: zerolog.Nop(),
	}, MeterConfig{Limits: quota.Config{HourlyLimit: 3, DailyLimit: 10}})

	// Recording failure must never block the calling workflow.
	if err := svc.RecordUsage(context.Background(), "user-1", "wizard"); err != nil {
		t.Errorf("expected silent drop, got %v", err)
	}
}

func TestRecordUsage_AppendsAuditEvent(t *testing.T) {
	store := memory.NewUsageStore()
	svc := newTestService(store, testClock())
	ctx := context.Background()

	_ = svc.RecordUsage(ctx, "user-1", "wizard")
	_ = svc.RecordUsage(ctx, "user-1", "api")

	events, err := svc.RecentEvents(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Source != "api" {
		t.Errorf("expected newest first, got source %q", events[0].Source)
	}
}

func TestGetStats_UnknownUser(t *testing.T) {
	svc := newTestService(memory.NewUsageStore(), testClock())

	s, err := svc.GetStats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	want := quota.Stats{
		Hourly: quota.Window{Used: 0, Limit: 3, Remaining: 3},
		Daily:  quota.Window{Used: 0, Limit: 10, Remaining: 10},
		Total:  0,
	}
	if s != want {
		t.Errorf("expected %+v, got %+v", want, s)
	}
}

func TestGetStats_AfterRecordings(t *testing.T) {
	svc := newTestService(memory.NewUsageStore(), testClock())
	ctx := context.Background()

	_ = svc.RecordUsage(ctx, "user-1", "wizard")
	_ = svc.RecordUsage(ctx, "user-1", "wizard")

	s, err := svc.GetStats(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if s.Hourly.Used != 2 || s.Hourly.Remaining != 1 {
		t.Errorf("unexpected hourly window: %+v", s.Hourly)
	}
	if s.Daily.Used != 2 || s.Daily.Remaining != 8 {
		t.Errorf("unexpected daily window: %+v", s.Daily)
	}
	if s.Total != 2 {
		t.Errorf("expected total 2, got %d", s.Total)
	}
}

func TestGetStats_DegradesToZeroOnStoreFailure(t *testing.T) {
	svc := NewMeterService(MeterDeps{
		Store:  memory.FailingUsageStore{},
		Clock:  testClock(),
		IDGen:  idgen.NewSequential("evt_"),
		Logger: zerolog.Nop(),
	}, MeterConfig{Limits: quota.Config{HourlyLimit: 3, DailyLimit: 10}})

	s, err := svc.GetStats(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected degraded stats, got error %v", err)
	}
	if s.Hourly.Remaining != 3 || s.Daily.Remaining != 10 {
		t.Errorf("expected full remaining quota on degraded read, got %+v", s)
	}
}

func TestUpdateLimits_HotReload(t *testing.T) {
	svc := newTestService(memory.NewUsageStore(), testClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = svc.RecordUsage(ctx, "user-1", "wizard")
	}
	if d, _ := svc.CheckQuota(ctx, "user-1"); d.Allowed {
		t.Fatalf("expected denial at hourly limit 3")
	}

	svc.UpdateLimits(quota.Config{HourlyLimit: 5, DailyLimit: 10})
	if d, _ := svc.CheckQuota(ctx, "user-1"); !d.Allowed {
		t.Errorf("expected raised limit to allow, got denial")
	}
}
