package models

import (
	"testing"
	"time"
)

func TestEntitlementTierDerivation(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	entModel := &EntitlementModel{DB: db.DB}
	subModel := &SubscriptionModel{DB: db.DB}
	now := time.Now()

	t.Run("fresh trial", func(t *testing.T) {
		ent, err := entModel.ResolveAt(artist.ID, now)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if ent.Tier != TierTrial {
			t.Errorf("tier = %s, want trial", ent.Tier)
		}
		if ent.IsExpired {
			t.Error("fresh trial reported expired")
		}
		if ent.Usage.AITokenLimit != 10000 {
			t.Errorf("trial AI limit = %d, want 10000", ent.Usage.AITokenLimit)
		}
		if ent.Usage.PendingReleaseCap != 1 {
			t.Errorf("trial pending cap = %d, want 1", ent.Usage.PendingReleaseCap)
		}
		if !ent.FeatureAccess[FeatureReleaseCreation] {
			t.Error("fresh trial should allow release creation")
		}
		if ent.FeatureAccess[FeatureAnalytics] {
			t.Error("trial should not have analytics")
		}
	})

	t.Run("upgrade to pro", func(t *testing.T) {
		expires := now.AddDate(0, 1, 0)
		if err := subModel.ApplyBillingUpdate(artist.ID, TierPro, SubStatusActive, "cus_123", "sub_456", &expires); err != nil {
			t.Fatalf("ApplyBillingUpdate failed: %v", err)
		}
		ent, err := entModel.ResolveAt(artist.ID, now)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if ent.Tier != TierPro {
			t.Errorf("tier = %s, want pro", ent.Tier)
		}
		if ent.Usage.AITokenLimit != Unlimited {
			t.Errorf("pro AI limit = %d, want unlimited", ent.Usage.AITokenLimit)
		}
		if !ent.CanUseAI() {
			t.Error("pro should always pass the AI gate")
		}
		for _, feature := range []string{FeatureAnalytics, FeatureFanEngagement, FeatureCustomLabel, FeaturePriorityReview} {
			if !ent.FeatureAccess[feature] {
				t.Errorf("pro missing feature %s", feature)
			}
		}
	})

	t.Run("expired subscription loses access", func(t *testing.T) {
		past := now.AddDate(0, 0, -1)
		if err := subModel.ApplyBillingUpdate(artist.ID, TierPlus, SubStatusActive, "cus_123", "sub_456", &past); err != nil {
			t.Fatalf("ApplyBillingUpdate failed: %v", err)
		}
		ent, err := entModel.ResolveAt(artist.ID, now)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if !ent.IsExpired {
			t.Error("past-expiry subscription not reported expired")
		}
		if ent.FeatureAccess[FeatureReleaseCreation] {
			t.Error("expired subscription should not allow release creation")
		}
		if ent.CanUseAI() {
			t.Error("expired subscription should not pass the AI gate")
		}
		if ent.DaysRemaining != 0 {
			t.Errorf("days remaining = %d, want 0", ent.DaysRemaining)
		}
	})
}

func TestAIUsagePeriodKeys(t *testing.T) {
	now := time.Date(2026, 5, 17, 9, 0, 0, 0, time.UTC)

	if got := aiPeriodKey(TierTrial, now); got != "2026-05-17" {
		t.Errorf("trial period key = %s, want daily", got)
	}
	if got := aiPeriodKey(TierPlus, now); got != "2026-05" {
		t.Errorf("plus period key = %s, want monthly", got)
	}
	if got := aiPeriodKey(TierPro, now); got != "2026-05" {
		t.Errorf("pro period key = %s, want monthly", got)
	}
}

func TestAIUsageAccrualAndGate(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	entModel := &EntitlementModel{DB: db.DB}
	now := time.Now()

	// Accrue just under the trial's daily cap
	if err := entModel.AddAIUsage(artist.ID, TierTrial, 9999, now); err != nil {
		t.Fatalf("AddAIUsage failed: %v", err)
	}
	ent, err := entModel.ResolveAt(artist.ID, now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ent.Usage.AITokensUsed != 9999 {
		t.Errorf("tokens used = %d, want 9999", ent.Usage.AITokensUsed)
	}
	if !ent.CanUseAI() {
		t.Error("under-cap usage should pass the AI gate")
	}

	// Cross the cap; the upsert must accumulate, not overwrite
	if err := entModel.AddAIUsage(artist.ID, TierTrial, 5, now); err != nil {
		t.Fatalf("AddAIUsage failed: %v", err)
	}
	ent, err = entModel.ResolveAt(artist.ID, now)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ent.Usage.AITokensUsed != 10004 {
		t.Errorf("tokens used = %d, want 10004", ent.Usage.AITokensUsed)
	}
	if ent.CanUseAI() {
		t.Error("over-cap usage should fail the AI gate")
	}

	// A new day is a fresh bucket for trial users
	tomorrow := now.AddDate(0, 0, 1)
	ent, err = entModel.ResolveAt(artist.ID, tomorrow)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ent.Usage.AITokensUsed != 0 {
		t.Errorf("next-day tokens used = %d, want 0", ent.Usage.AITokensUsed)
	}
}

func TestPendingReleaseCap(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}
	entModel := &EntitlementModel{DB: db.DB}

	release := submittableRelease(t, releaseModel, artist.ID)
	if _, err := releaseModel.SaveStep(release, StepInput{Step: 3, SubmitForReview: true}, true, time.Now()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	ent, err := entModel.Resolve(artist.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ent.Usage.PendingReleases != 1 {
		t.Errorf("pending releases = %d, want 1", ent.Usage.PendingReleases)
	}
	if ent.CanCreateRelease() {
		t.Error("trial at the pending cap should not create another release")
	}
}
