package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.SlotBucketMinutes != 30 {
		t.Errorf("expected default bucket of 30 minutes, got %d", cfg.SlotBucketMinutes)
	}
	if cfg.StaffSlotCapacity != 5 || cfg.PortalSlotCapacity != 3 {
		t.Errorf("unexpected default capacities: staff=%d portal=%d", cfg.StaffSlotCapacity, cfg.PortalSlotCapacity)
	}
	if cfg.MinCancelLead != 24*time.Hour {
		t.Errorf("expected 24h cancel lead, got %s", cfg.MinCancelLead)
	}
	if cfg.NoShowThreshold != 3 {
		t.Errorf("expected no-show threshold 3, got %d", cfg.NoShowThreshold)
	}
	if cfg.VoidReasonMinLength != 10 {
		t.Errorf("expected void reason min length 10, got %d", cfg.VoidReasonMinLength)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORTAL_SAME_DAY_BUFFER", "90m")
	t.Setenv("STAFF_SLOT_CAPACITY", "8")

	cfg := Load()

	if cfg.PortalSameDayBuffer != 90*time.Minute {
		t.Errorf("expected 90m buffer, got %s", cfg.PortalSameDayBuffer)
	}
	if cfg.StaffSlotCapacity != 8 {
		t.Errorf("expected capacity 8, got %d", cfg.StaffSlotCapacity)
	}
}
