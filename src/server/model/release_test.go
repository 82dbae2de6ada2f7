package models

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tunecast/tunecast/src/database"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.InitDB(":memory:")
	if err != nil {
		t.Fatalf("failed to init test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestArtist(t *testing.T, db *database.DB, email string) *User {
	t.Helper()
	userModel := &UserModel{DB: db.DB}
	user, err := userModel.Create(email, "Test Artist", "test-password-123")
	if err != nil {
		t.Fatalf("failed to create test artist: %v", err)
	}
	subModel := &SubscriptionModel{DB: db.DB}
	if _, err := subModel.EnsureTrial(user.ID, 14); err != nil {
		t.Fatalf("failed to create trial subscription: %v", err)
	}
	return user
}

func makeTracks(n int) []*Track {
	tracks := make([]*Track, n)
	for i := range tracks {
		tracks[i] = &Track{
			TrackTitle:  fmt.Sprintf("Track %d", i+1),
			ArtistNames: []string{"Test Artist"},
			Songwriters: []Songwriter{{FirstName: "Ada", LastName: "Wong", Role: "Composer"}},
		}
	}
	return tracks
}

func futureDate(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

func TestValidateTrackCount(t *testing.T) {
	tests := []struct {
		name    string
		dt      DistributionType
		count   int
		wantErr bool
	}{
		{"single with 1 track", DistSingle, 1, false},
		{"single with 2 tracks", DistSingle, 2, true},
		{"single with 0 tracks", DistSingle, 0, true},
		{"ep lower bound", DistEP, 2, false},
		{"ep upper bound", DistEP, 8, false},
		{"ep with 1 track", DistEP, 1, true},
		{"ep with 9 tracks", DistEP, 9, true},
		{"album at boundary", DistAlbum, 8, false},
		{"album below boundary", DistAlbum, 7, true},
		{"album large", DistAlbum, 20, false},
		{"unknown type", DistributionType("Mixtape"), 3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTrackCount(tt.dt, tt.count)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTrackCount(%s, %d) error = %v, wantErr %v", tt.dt, tt.count, err, tt.wantErr)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ReleaseStatus
		want     bool
	}{
		{StatusDraft, StatusUnderReview, true},
		{StatusDraft, StatusApproved, false},
		{StatusUnderReview, StatusApproved, true},
		{StatusUnderReview, StatusRejected, true},
		{StatusUnderReview, StatusDraft, false},
		{StatusRejected, StatusUnderReview, true},
		{StatusApproved, StatusUnderReview, true},
		{StatusApproved, StatusSentToStores, true},
		{StatusSentToStores, StatusTakedownRequested, true},
		{StatusSentToStores, StatusUnderReview, false},
		{StatusTakedownRequested, StatusTakedown, true},
		{StatusTakedown, StatusUnderReview, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestReleaseCreate(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}

	release, err := releaseModel.Create(artist.ID, &Release{
		DistributionType: DistSingle,
		ReleaseTitle:     "Midnight Run",
		Genre:            "Electronic",
		SelectedStores:   []string{"Spotify", "Apple Music"},
	}, makeTracks(1))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if release.Status != StatusDraft {
		t.Errorf("new release status = %s, want draft", release.Status)
	}
	if release.Slug == "" {
		t.Error("new release has no slug")
	}
	if len(release.Tracks) != 1 {
		t.Fatalf("got %d tracks, want 1", len(release.Tracks))
	}
	if release.Tracks[0].TrackNumber != 1 {
		t.Errorf("track number = %d, want 1", release.Tracks[0].TrackNumber)
	}
}

func TestReleaseCreateRejectsBadTrackCount(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}

	_, err := releaseModel.Create(artist.ID, &Release{
		DistributionType: DistEP,
		ReleaseTitle:     "Tiny EP",
	}, makeTracks(1))
	if err == nil {
		t.Fatal("expected validation error for EP with 1 track")
	}
	if _, ok := AsValidation(err); !ok {
		t.Errorf("expected ValidationError, got %T", err)
	}

	// Nothing should have been written
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM releases`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("found %d releases after failed create, want 0", count)
	}
}

func TestReleaseOwnershipMissIsNotFound(t *testing.T) {
	db := setupTestDB(t)
	owner := createTestArtist(t, db, "owner@example.com")
	other := createTestArtist(t, db, "other@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}

	release, err := releaseModel.Create(owner.ID, &Release{
		DistributionType: DistSingle,
		ReleaseTitle:     "Private Song",
	}, makeTracks(1))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = releaseModel.GetForArtist(release.ID, other.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ownership miss returned %v, want ErrNotFound", err)
	}
}

func TestValidateBasicInfoReleaseDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		date    string
		wantErr bool
	}{
		{"exactly 7 days out", "2026-03-08", false},
		{"8 days out", "2026-03-09", false},
		{"6 days out", "2026-03-07", true},
		{"today", "2026-03-01", true},
		{"past", "2026-02-01", true},
		{"missing", "", true},
		{"garbage", "next-friday", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Release{ReleaseTitle: "Test", ReleaseDate: tt.date}
			err := ValidateBasicInfo(r, now)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateBasicInfo date=%q error = %v, wantErr %v", tt.date, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTracksStepSongwriters(t *testing.T) {
	complete := Songwriter{FirstName: "Ada", LastName: "Wong", Role: "Composer"}

	tests := []struct {
		name        string
		songwriters []Songwriter
		wantErr     bool
	}{
		{"one complete songwriter", []Songwriter{complete}, false},
		{"no songwriters", nil, true},
		{"missing first name", []Songwriter{{LastName: "Wong", Role: "Composer"}}, true},
		{"missing role", []Songwriter{{FirstName: "Ada", LastName: "Wong"}}, true},
		{"whitespace only", []Songwriter{{FirstName: "  ", LastName: "Wong", Role: "Composer"}}, true},
		{"one complete one broken", []Songwriter{complete, {FirstName: "B"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracks := []*Track{{TrackNumber: 1, TrackTitle: "Song", Songwriters: tt.songwriters}}
			err := ValidateTracksStep(tracks)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTracksStep error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateTermsSnapchatConditional(t *testing.T) {
	base := Release{TermsAgreed: true, FairUseAgreed: true}

	t.Run("snapchat not selected", func(t *testing.T) {
		r := base
		r.SelectedStores = []string{"Spotify"}
		if err := ValidateTerms(&r); err != nil {
			t.Errorf("unexpected error without Snapchat: %v", err)
		}
	})

	t.Run("snapchat selected without agreement", func(t *testing.T) {
		r := base
		r.SelectedStores = []string{"Spotify", "Snapchat"}
		if err := ValidateTerms(&r); err == nil {
			t.Error("expected error when Snapchat selected but terms not agreed")
		}
	})

	t.Run("snapchat selected with agreement", func(t *testing.T) {
		r := base
		r.SelectedStores = []string{"Snapchat"}
		r.SnapchatTermsAgreed = true
		if err := ValidateTerms(&r); err != nil {
			t.Errorf("unexpected error with Snapchat agreed: %v", err)
		}
	})

	t.Run("core terms missing", func(t *testing.T) {
		r := Release{FairUseAgreed: true}
		if err := ValidateTerms(&r); err == nil {
			t.Error("expected error when distribution terms not agreed")
		}
	})
}

func submittableRelease(t *testing.T, m *ReleaseModel, artistID int64) *Release {
	t.Helper()
	release, err := m.Create(artistID, &Release{
		DistributionType: DistSingle,
		ReleaseTitle:     "Ready To Go",
		ReleaseDate:      futureDate(14),
		SelectedStores:   []string{"Spotify"},
	}, makeTracks(1))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	release, err = m.SaveStep(release, StepInput{
		Step:    3,
		Release: &Release{TermsAgreed: true, FairUseAgreed: true},
	}, true, time.Now())
	if err != nil {
		t.Fatalf("SaveStep terms failed: %v", err)
	}
	return release
}

func TestSubmitForReview(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}
	release := submittableRelease(t, releaseModel, artist.ID)

	updated, err := releaseModel.SaveStep(release, StepInput{Step: 3, SubmitForReview: true}, true, time.Now())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if updated.Status != StatusUnderReview {
		t.Errorf("status after submit = %s, want under_review", updated.Status)
	}
	if updated.SubmittedAt == nil {
		t.Error("submitted_at not set")
	}
}

func TestSubmitRequiresIdentityVerification(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}
	release := submittableRelease(t, releaseModel, artist.ID)

	_, err := releaseModel.SaveStep(release, StepInput{Step: 3, SubmitForReview: true}, false, time.Now())
	if !errors.Is(err, ErrIdentityRequired) {
		t.Errorf("submit without identity returned %v, want ErrIdentityRequired", err)
	}

	// Status must be untouched
	got, err := releaseModel.GetByID(release.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusDraft {
		t.Errorf("status after failed submit = %s, want draft", got.Status)
	}
}

func TestSubmitRejectsShortLeadTime(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}

	release, err := releaseModel.Create(artist.ID, &Release{
		DistributionType: DistSingle,
		ReleaseTitle:     "Too Soon",
		ReleaseDate:      futureDate(3),
		SelectedStores:   []string{"Spotify"},
	}, makeTracks(1))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	release.TermsAgreed = true
	release.FairUseAgreed = true

	_, err = releaseModel.SaveStep(release, StepInput{Step: 3, SubmitForReview: true}, true, time.Now())
	if err == nil {
		t.Fatal("expected lead-time validation error")
	}
	if _, ok := AsValidation(err); !ok {
		t.Errorf("expected ValidationError, got %T: %v", err, err)
	}
}

func TestSaveStepReplacesTracksAtomically(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}

	release, err := releaseModel.Create(artist.ID, &Release{
		DistributionType: DistEP,
		ReleaseTitle:     "Double Feature",
	}, makeTracks(2))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	replacement := makeTracks(3)
	replacement[0].TrackTitle = "Opener"
	updated, err := releaseModel.SaveStep(release, StepInput{Step: 2, Tracks: replacement}, true, time.Now())
	if err != nil {
		t.Fatalf("SaveStep failed: %v", err)
	}
	if len(updated.Tracks) != 3 {
		t.Fatalf("got %d tracks after replacement, want 3", len(updated.Tracks))
	}
	if updated.Tracks[0].TrackTitle != "Opener" {
		t.Errorf("first track = %q, want Opener", updated.Tracks[0].TrackTitle)
	}
	for i, tr := range updated.Tracks {
		if tr.TrackNumber != i+1 {
			t.Errorf("track %d has number %d", i, tr.TrackNumber)
		}
	}
}

func TestAdminReviewTransitions(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}
	release := submittableRelease(t, releaseModel, artist.ID)

	release, err := releaseModel.SaveStep(release, StepInput{Step: 3, SubmitForReview: true}, true, time.Now())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	rejected, err := releaseModel.SetStatus(release.ID, StatusRejected, "cover art too low resolution")
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != StatusRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}
	if rejected.RejectionReason != "cover art too low resolution" {
		t.Errorf("rejection reason = %q", rejected.RejectionReason)
	}
	if rejected.ReviewedAt == nil {
		t.Error("reviewed_at not set")
	}

	// Rejected releases can be resubmitted, not approved directly
	if _, err := releaseModel.SetStatus(release.ID, StatusApproved, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("rejected→approved returned %v, want ErrInvalidTransition", err)
	}

	resubmitted, err := releaseModel.SaveStep(rejected, StepInput{Step: 3, SubmitForReview: true}, true, time.Now())
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if resubmitted.Status != StatusUnderReview {
		t.Errorf("status after resubmit = %s, want under_review", resubmitted.Status)
	}

	approved, err := releaseModel.SetStatus(release.ID, StatusApproved, "")
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != StatusApproved {
		t.Errorf("status = %s, want approved", approved.Status)
	}
}

func TestEditOfReviewedReleaseReturnsToQueue(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}

	for _, reviewed := range []ReleaseStatus{StatusApproved, StatusRejected} {
		t.Run(string(reviewed), func(t *testing.T) {
			release := submittableRelease(t, releaseModel, artist.ID)
			release, err := releaseModel.SaveStep(release, StepInput{Step: 3, SubmitForReview: true}, true, time.Now())
			if err != nil {
				t.Fatalf("submit failed: %v", err)
			}
			reason := ""
			if reviewed == StatusRejected {
				reason = "metadata mismatch"
			}
			release, err = releaseModel.SetStatus(release.ID, reviewed, reason)
			if err != nil {
				t.Fatalf("SetStatus failed: %v", err)
			}

			// A plain step save, no resubmission flag
			updated, err := releaseModel.SaveStep(release, StepInput{
				Step:    1,
				Release: &Release{ReleaseTitle: "Revised Title"},
			}, true, time.Now())
			if err != nil {
				t.Fatalf("SaveStep failed: %v", err)
			}
			if updated.ReleaseTitle != "Revised Title" {
				t.Errorf("title = %q, want Revised Title", updated.ReleaseTitle)
			}
			if updated.Status != StatusUnderReview {
				t.Errorf("status after editing %s release = %s, want under_review", reviewed, updated.Status)
			}
		})
	}
}

func TestSaveStepKeepsDraftStatus(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}
	release := submittableRelease(t, releaseModel, artist.ID)

	updated, err := releaseModel.SaveStep(release, StepInput{
		Step:    1,
		Release: &Release{Genre: "House"},
	}, true, time.Now())
	if err != nil {
		t.Fatalf("SaveStep failed: %v", err)
	}
	if updated.Status != StatusDraft {
		t.Errorf("editing a draft changed status to %s", updated.Status)
	}
}

func TestMakeSlugUnique(t *testing.T) {
	a := MakeSlug("Same Title")
	b := MakeSlug("Same Title")
	if a == b {
		t.Errorf("two slugs for the same title collided: %s", a)
	}
	if !strings.HasPrefix(a, "same-title-") {
		t.Errorf("slug = %q, want same-title- prefix", a)
	}
}

func TestDeleteDraftOnly(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	releaseModel := &ReleaseModel{DB: db.DB}
	release := submittableRelease(t, releaseModel, artist.ID)

	// Draft deletes, and cascades to tracks
	if err := releaseModel.Delete(release.ID, artist.ID); err != nil {
		t.Fatalf("delete draft failed: %v", err)
	}
	var trackCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tracks WHERE release_id = ?`, release.ID).Scan(&trackCount); err != nil {
		t.Fatal(err)
	}
	if trackCount != 0 {
		t.Errorf("found %d orphan tracks after delete", trackCount)
	}

	// Submitted releases cannot be deleted
	second := submittableRelease(t, releaseModel, artist.ID)
	second, err := releaseModel.SaveStep(second, StepInput{Step: 3, SubmitForReview: true}, true, time.Now())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if err := releaseModel.Delete(second.ID, artist.ID); !errors.Is(err, ErrNotDraft) {
		t.Errorf("delete submitted returned %v, want ErrNotDraft", err)
	}
}

func TestFreeReleaseFlagFlipsOnce(t *testing.T) {
	db := setupTestDB(t)
	artist := createTestArtist(t, db, "artist@example.com")
	subModel := &SubscriptionModel{DB: db.DB}

	flipped, err := subModel.MarkFreeReleaseUsed(artist.ID)
	if err != nil {
		t.Fatalf("first flip failed: %v", err)
	}
	if !flipped {
		t.Error("first call should flip the flag")
	}

	flipped, err = subModel.MarkFreeReleaseUsed(artist.ID)
	if err != nil {
		t.Fatalf("second flip failed: %v", err)
	}
	if flipped {
		t.Error("second call should be a no-op")
	}

	ent, err := (&EntitlementModel{DB: db.DB}).Resolve(artist.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if ent.FeatureAccess[FeatureReleaseCreation] {
		t.Error("trial with used free release should not have release_creation access")
	}
}
