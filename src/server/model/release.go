package models

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ReleaseStatus is the closed set of release lifecycle states
type ReleaseStatus string

const (
	StatusDraft             ReleaseStatus = "draft"
	StatusUnderReview       ReleaseStatus = "under_review"
	StatusApproved          ReleaseStatus = "approved"
	StatusRejected          ReleaseStatus = "rejected"
	StatusSentToStores      ReleaseStatus = "sent_to_stores"
	StatusTakedownRequested ReleaseStatus = "takedown_requested"
	StatusTakedown          ReleaseStatus = "takedown"
)

// transitions is the authoritative state machine. Deleting is modeled
// separately (draft only); edits to approved/rejected push the release
// back to under_review.
var transitions = map[ReleaseStatus][]ReleaseStatus{
	StatusDraft:             {StatusUnderReview},
	StatusUnderReview:       {StatusApproved, StatusRejected, StatusTakedownRequested},
	StatusApproved:          {StatusUnderReview, StatusSentToStores, StatusTakedownRequested},
	StatusRejected:          {StatusUnderReview},
	StatusSentToStores:      {StatusTakedownRequested},
	StatusTakedownRequested: {StatusTakedown},
	StatusTakedown:          {},
}

// CanTransition reports whether from → to is a legal move
func CanTransition(from, to ReleaseStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DistributionType constrains the track count of a release
type DistributionType string

const (
	DistSingle DistributionType = "Single"
	DistEP     DistributionType = "EP"
	DistAlbum  DistributionType = "Album"
)

// ValidateTrackCount enforces Single=1, EP=2-8, Album>=8
func ValidateTrackCount(dt DistributionType, count int) error {
	switch dt {
	case DistSingle:
		if count != 1 {
			return Validation(fmt.Sprintf("a Single must have exactly 1 track, got %d", count))
		}
	case DistEP:
		if count < 2 || count > 8 {
			return Validation(fmt.Sprintf("an EP must have 2-8 tracks, got %d", count))
		}
	case DistAlbum:
		if count < 8 {
			return Validation(fmt.Sprintf("an Album must have at least 8 tracks, got %d", count))
		}
	default:
		return Validation(fmt.Sprintf("unknown distribution type: %s", dt))
	}
	return nil
}

// MinReleaseLeadDays is the minimum days between submission and release date
const MinReleaseLeadDays = 7

// Songwriter credit; every field is required before submission
type Songwriter struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

// Complete reports whether all required songwriter fields are present
func (s Songwriter) Complete() bool {
	return strings.TrimSpace(s.FirstName) != "" &&
		strings.TrimSpace(s.LastName) != "" &&
		strings.TrimSpace(s.Role) != ""
}

// Track belongs to a release, ordered by TrackNumber (1-based, contiguous)
type Track struct {
	ID                 int64        `json:"id"`
	ReleaseID          int64        `json:"release_id"`
	TrackNumber        int          `json:"track_number"`
	TrackTitle         string       `json:"track_title"`
	ArtistNames        []string     `json:"artist_names"`
	FeaturedArtists    []string     `json:"featured_artists"`
	Songwriters        []Songwriter `json:"songwriters"`
	ProducerCredits    []string     `json:"producer_credits"`
	PerformerCredits   []string     `json:"performer_credits"`
	Genre              string       `json:"genre,omitempty"`
	AudioFileURL       string       `json:"audio_file_url,omitempty"`
	AudioFileName      string       `json:"audio_file_name,omitempty"`
	ISRC               string       `json:"isrc,omitempty"`
	LyricsText         string       `json:"lyrics_text,omitempty"`
	HasLyrics          bool         `json:"has_lyrics"`
	AddFeaturedToTitle bool         `json:"add_featured_to_title"`
}

// StreamingLink is one parsed store/platform link on a release
type StreamingLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// FanEngagement holds the public-page fan options
type FanEngagement struct {
	Enabled     bool `json:"enabled"`
	EmailSignup bool `json:"emailSignup,omitempty"`
	FanZone     bool `json:"fanZone,omitempty"`
}

// Release is a distributable music product with ordered tracks
type Release struct {
	ID                  int64            `json:"id"`
	ArtistID            int64            `json:"artist_id"`
	DistributionType    DistributionType `json:"distribution_type"`
	ReleaseTitle        string           `json:"release_title"`
	Slug                string           `json:"slug,omitempty"`
	Genre               string           `json:"genre,omitempty"`
	Language            string           `json:"language,omitempty"`
	Label               string           `json:"label,omitempty"`
	CLine               string           `json:"c_line,omitempty"`
	PLine               string           `json:"p_line,omitempty"`
	AlbumCoverURL       string           `json:"album_cover_url,omitempty"`
	SelectedStores      []string         `json:"selected_stores"`
	TrackPrice          float64          `json:"track_price,omitempty"`
	ReleaseDate         string           `json:"release_date,omitempty"` // YYYY-MM-DD
	Status              ReleaseStatus    `json:"status"`
	CurrentStep         int              `json:"current_step"`
	TermsAgreed         bool             `json:"terms_agreed"`
	FairUseAgreed       bool             `json:"fair_use_agreed"`
	SnapchatTermsAgreed bool             `json:"snapchat_terms_agreed"`
	ParsedLinks         []StreamingLink  `json:"parsed_links,omitempty"`
	HasParsedData       bool             `json:"has_parsed_data"`
	FanEngagement       *FanEngagement   `json:"fan_engagement,omitempty"`
	RejectionReason     string           `json:"rejection_reason,omitempty"`
	SubmittedAt         *time.Time       `json:"submitted_at,omitempty"`
	ReviewedAt          *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	Tracks              []*Track         `json:"tracks,omitempty"`
}

// HasStore reports whether a store was selected (case-insensitive)
func (r *Release) HasStore(name string) bool {
	for _, s := range r.SelectedStores {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// MakeSlug builds a URL slug from the title plus a short random suffix
func MakeSlug(title string) string {
	base := slugCleaner.ReplaceAllString(strings.ToLower(title), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "release"
	}
	if len(base) > 48 {
		base = base[:48]
	}
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		panic(fmt.Sprintf("crypto/rand unavailable: %v", err))
	}
	return base + "-" + hex.EncodeToString(suffix)
}

// ReleaseModel handles release and track database operations
type ReleaseModel struct {
	DB *sql.DB
}

// validateCore checks the always-required fields on a release payload
func validateCore(r *Release, tracks []*Track) error {
	var errs []string
	if strings.TrimSpace(r.ReleaseTitle) == "" {
		errs = append(errs, "release_title is required")
	}
	if r.DistributionType != DistSingle && r.DistributionType != DistEP && r.DistributionType != DistAlbum {
		errs = append(errs, fmt.Sprintf("unknown distribution type: %s", r.DistributionType))
	} else if err := ValidateTrackCount(r.DistributionType, len(tracks)); err != nil {
		ve, _ := AsValidation(err)
		errs = append(errs, ve.Errors...)
	}
	for i, t := range tracks {
		if strings.TrimSpace(t.TrackTitle) == "" {
			errs = append(errs, fmt.Sprintf("track %d: track_title is required", i+1))
		}
	}
	if len(errs) > 0 {
		return Validation(errs...)
	}
	return nil
}

// ValidateBasicInfo is the step-1 rule set: the release date must be at
// least MinReleaseLeadDays out (exactly +7 days is accepted)
func ValidateBasicInfo(r *Release, now time.Time) error {
	var errs []string
	if strings.TrimSpace(r.ReleaseTitle) == "" {
		errs = append(errs, "release_title is required")
	}
	if r.ReleaseDate == "" {
		errs = append(errs, "release_date is required")
	} else {
		parsed, err := time.Parse("2006-01-02", r.ReleaseDate)
		if err != nil {
			errs = append(errs, "release_date must be YYYY-MM-DD")
		} else {
			earliest := now.UTC().Truncate(24 * time.Hour).AddDate(0, 0, MinReleaseLeadDays)
			if parsed.Before(earliest) {
				errs = append(errs, fmt.Sprintf("release_date must be at least %d days from today", MinReleaseLeadDays))
			}
		}
	}
	if len(errs) > 0 {
		return Validation(errs...)
	}
	return nil
}

// ValidateTracksStep is the step-2 rule set: every track needs at least one
// fully specified songwriter
func ValidateTracksStep(tracks []*Track) error {
	var errs []string
	for _, t := range tracks {
		if len(t.Songwriters) == 0 {
			errs = append(errs, fmt.Sprintf("track %d (%s): at least one songwriter is required", t.TrackNumber, t.TrackTitle))
			continue
		}
		for j, sw := range t.Songwriters {
			if !sw.Complete() {
				errs = append(errs, fmt.Sprintf("track %d (%s): songwriter %d needs firstName, lastName and role", t.TrackNumber, t.TrackTitle, j+1))
			}
		}
	}
	if len(errs) > 0 {
		return Validation(errs...)
	}
	return nil
}

// ValidateTerms is the step-3 rule set: all legal flags must be set, and the
// Snapchat flag only applies when Snapchat is among the selected stores
func ValidateTerms(r *Release) error {
	var errs []string
	if !r.TermsAgreed {
		errs = append(errs, "distribution terms must be accepted")
	}
	if !r.FairUseAgreed {
		errs = append(errs, "fair use policy must be accepted")
	}
	if r.HasStore("Snapchat") && !r.SnapchatTermsAgreed {
		errs = append(errs, "Snapchat terms must be accepted when Snapchat is selected")
	}
	if len(errs) > 0 {
		return Validation(errs...)
	}
	return nil
}

// Create persists a new draft release with its tracks in one transaction.
// Any track insert failure rolls back the whole release.
func (m *ReleaseModel) Create(artistID int64, release *Release, tracks []*Track) (*Release, error) {
	if err := validateCore(release, tracks); err != nil {
		return nil, err
	}

	tx, err := m.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stores, err := marshalJSON(release.SelectedStores)
	if err != nil {
		return nil, err
	}

	slug := MakeSlug(release.ReleaseTitle)
	result, err := tx.Exec(`
		INSERT INTO releases (artist_id, distribution_type, release_title, slug, genre, language,
			label, c_line, p_line, album_cover_url, selected_stores, track_price, release_date,
			status, current_step, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'draft', 1, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
	`, artistID, release.DistributionType, release.ReleaseTitle, slug, release.Genre, release.Language,
		release.Label, release.CLine, release.PLine, release.AlbumCoverURL, stores,
		release.TrackPrice, nullIfEmpty(release.ReleaseDate))
	if err != nil {
		return nil, fmt.Errorf("failed to insert release: %w", err)
	}

	releaseID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get release ID: %w", err)
	}

	if err := insertTracks(tx, releaseID, tracks); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit release: %w", err)
	}

	return m.GetByID(releaseID)
}

// insertTracks writes tracks in track_number order within a transaction
func insertTracks(tx *sql.Tx, releaseID int64, tracks []*Track) error {
	for i, t := range tracks {
		artistNames, err := marshalJSON(t.ArtistNames)
		if err != nil {
			return err
		}
		featured, err := marshalJSON(t.FeaturedArtists)
		if err != nil {
			return err
		}
		songwriters, err := marshalJSON(t.Songwriters)
		if err != nil {
			return err
		}
		producers, err := marshalJSON(t.ProducerCredits)
		if err != nil {
			return err
		}
		performers, err := marshalJSON(t.PerformerCredits)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO tracks (release_id, track_number, track_title, artist_names, featured_artists,
				songwriters, producer_credits, performer_credits, genre, audio_file_url, audio_file_name,
				isrc, lyrics_text, has_lyrics, add_featured_to_title)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, releaseID, i+1, t.TrackTitle, artistNames, featured, songwriters, producers, performers,
			t.Genre, t.AudioFileURL, t.AudioFileName, t.ISRC, t.LyricsText, t.HasLyrics, t.AddFeaturedToTitle)
		if err != nil {
			return fmt.Errorf("failed to insert track %d: %w", i+1, err)
		}
	}
	return nil
}

// GetByID retrieves a release with its tracks
func (m *ReleaseModel) GetByID(id int64) (*Release, error) {
	release, err := m.scanRelease(m.DB.QueryRow(releaseSelect+` WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	release.Tracks, err = m.tracksFor(id)
	if err != nil {
		return nil, err
	}
	return release, nil
}

// GetForArtist retrieves a release only when owned by the artist.
// An ownership miss is reported as ErrNotFound, never as forbidden.
func (m *ReleaseModel) GetForArtist(id, artistID int64) (*Release, error) {
	release, err := m.GetByID(id)
	if err != nil {
		return nil, err
	}
	if release.ArtistID != artistID {
		return nil, ErrNotFound
	}
	return release, nil
}

// GetBySlug retrieves a release by its public slug
func (m *ReleaseModel) GetBySlug(slug string) (*Release, error) {
	release, err := m.scanRelease(m.DB.QueryRow(releaseSelect+` WHERE slug = ?`, slug))
	if err != nil {
		return nil, err
	}
	release.Tracks, err = m.tracksFor(release.ID)
	if err != nil {
		return nil, err
	}
	return release, nil
}

const releaseSelect = `
	SELECT id, artist_id, distribution_type, release_title, slug, genre, language, label,
	       c_line, p_line, album_cover_url, selected_stores, track_price, release_date,
	       status, current_step, terms_agreed, fair_use_agreed, snapchat_terms_agreed,
	       parsed_links, has_parsed_data, fan_engagement, rejection_reason,
	       submitted_at, reviewed_at, created_at, updated_at
	FROM releases`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (m *ReleaseModel) scanRelease(row rowScanner) (*Release, error) {
	r := &Release{}
	var slug, genre, language, label, cLine, pLine, cover, stores, releaseDate sql.NullString
	var parsedLinks, fanEngagement, rejection sql.NullString
	var trackPrice sql.NullFloat64
	var submittedAt, reviewedAt sql.NullTime

	err := row.Scan(&r.ID, &r.ArtistID, &r.DistributionType, &r.ReleaseTitle, &slug, &genre,
		&language, &label, &cLine, &pLine, &cover, &stores, &trackPrice, &releaseDate,
		&r.Status, &r.CurrentStep, &r.TermsAgreed, &r.FairUseAgreed, &r.SnapchatTermsAgreed,
		&parsedLinks, &r.HasParsedData, &fanEngagement, &rejection,
		&submittedAt, &reviewedAt, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.Slug = slug.String
	r.Genre = genre.String
	r.Language = language.String
	r.Label = label.String
	r.CLine = cLine.String
	r.PLine = pLine.String
	r.AlbumCoverURL = cover.String
	r.TrackPrice = trackPrice.Float64
	r.RejectionReason = rejection.String
	if releaseDate.Valid {
		// DATE columns may come back with a time component
		r.ReleaseDate = strings.SplitN(releaseDate.String, "T", 2)[0]
		if len(r.ReleaseDate) > 10 {
			r.ReleaseDate = r.ReleaseDate[:10]
		}
	}
	if stores.Valid && stores.String != "" {
		if err := json.Unmarshal([]byte(stores.String), &r.SelectedStores); err != nil {
			return nil, fmt.Errorf("failed to decode selected_stores: %w", err)
		}
	}
	if parsedLinks.Valid && parsedLinks.String != "" {
		if err := json.Unmarshal([]byte(parsedLinks.String), &r.ParsedLinks); err != nil {
			return nil, fmt.Errorf("failed to decode parsed_links: %w", err)
		}
	}
	if fanEngagement.Valid && fanEngagement.String != "" {
		fe := &FanEngagement{}
		if err := json.Unmarshal([]byte(fanEngagement.String), fe); err == nil {
			r.FanEngagement = fe
		}
	}
	if submittedAt.Valid {
		r.SubmittedAt = &submittedAt.Time
	}
	if reviewedAt.Valid {
		r.ReviewedAt = &reviewedAt.Time
	}
	return r, nil
}

func (m *ReleaseModel) tracksFor(releaseID int64) ([]*Track, error) {
	rows, err := m.DB.Query(`
		SELECT id, release_id, track_number, track_title, artist_names, featured_artists,
		       songwriters, producer_credits, performer_credits, genre, audio_file_url,
		       audio_file_name, isrc, lyrics_text, has_lyrics, add_featured_to_title
		FROM tracks WHERE release_id = ? ORDER BY track_number
	`, releaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []*Track
	for rows.Next() {
		t := &Track{}
		var artistNames, featured, songwriters, producers, performers sql.NullString
		var genre, audioURL, audioName, isrc, lyrics sql.NullString
		if err := rows.Scan(&t.ID, &t.ReleaseID, &t.TrackNumber, &t.TrackTitle, &artistNames,
			&featured, &songwriters, &producers, &performers, &genre, &audioURL,
			&audioName, &isrc, &lyrics, &t.HasLyrics, &t.AddFeaturedToTitle); err != nil {
			return nil, err
		}
		unmarshalJSON(artistNames, &t.ArtistNames)
		unmarshalJSON(featured, &t.FeaturedArtists)
		unmarshalJSON(songwriters, &t.Songwriters)
		unmarshalJSON(producers, &t.ProducerCredits)
		unmarshalJSON(performers, &t.PerformerCredits)
		t.Genre = genre.String
		t.AudioFileURL = audioURL.String
		t.AudioFileName = audioName.String
		t.ISRC = isrc.String
		t.LyricsText = lyrics.String
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// ListByArtist returns all releases for an artist, newest first (no tracks)
func (m *ReleaseModel) ListByArtist(artistID int64) ([]*Release, error) {
	rows, err := m.DB.Query(releaseSelect+` WHERE artist_id = ? ORDER BY created_at DESC`, artistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var releases []*Release
	for rows.Next() {
		r, err := m.scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, r)
	}
	return releases, rows.Err()
}

// ListByStatus returns releases in a given status, oldest submission first
// (admin review queue)
func (m *ReleaseModel) ListByStatus(status ReleaseStatus) ([]*Release, error) {
	rows, err := m.DB.Query(releaseSelect+` WHERE status = ? ORDER BY submitted_at, created_at`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var releases []*Release
	for rows.Next() {
		r, err := m.scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, r)
	}
	return releases, rows.Err()
}

// StepInput carries a step-save payload
type StepInput struct {
	Step            int
	Release         *Release
	Tracks          []*Track
	SubmitForReview bool
}

// SaveStep validates and persists one wizard step. Any edit to an approved
// or rejected release moves it back to under_review. Track rows are
// replaced wholesale (delete then reinsert) inside the same transaction.
func (m *ReleaseModel) SaveStep(current *Release, input StepInput, identityVerified bool, now time.Time) (*Release, error) {
	merged := *current
	in := input.Release
	if in != nil {
		if in.ReleaseTitle != "" {
			merged.ReleaseTitle = in.ReleaseTitle
		}
		if in.Genre != "" {
			merged.Genre = in.Genre
		}
		if in.Language != "" {
			merged.Language = in.Language
		}
		if in.Label != "" {
			merged.Label = in.Label
		}
		if in.CLine != "" {
			merged.CLine = in.CLine
		}
		if in.PLine != "" {
			merged.PLine = in.PLine
		}
		if in.AlbumCoverURL != "" {
			merged.AlbumCoverURL = in.AlbumCoverURL
		}
		if in.ReleaseDate != "" {
			merged.ReleaseDate = in.ReleaseDate
		}
		if in.TrackPrice != 0 {
			merged.TrackPrice = in.TrackPrice
		}
		if in.SelectedStores != nil {
			merged.SelectedStores = in.SelectedStores
		}
		merged.TermsAgreed = merged.TermsAgreed || in.TermsAgreed
		merged.FairUseAgreed = merged.FairUseAgreed || in.FairUseAgreed
		merged.SnapchatTermsAgreed = merged.SnapchatTermsAgreed || in.SnapchatTermsAgreed
		if in.FanEngagement != nil {
			merged.FanEngagement = in.FanEngagement
		}
	}

	tracks := input.Tracks
	if tracks == nil {
		tracks = current.Tracks
	}

	switch input.Step {
	case 1:
		if err := ValidateBasicInfo(&merged, now); err != nil {
			return nil, err
		}
	case 2:
		if err := ValidateTrackCount(merged.DistributionType, len(tracks)); err != nil {
			return nil, err
		}
		if err := ValidateTracksStep(tracks); err != nil {
			return nil, err
		}
	case 3:
		if err := ValidateTerms(&merged); err != nil {
			return nil, err
		}
	default:
		return nil, Validation(fmt.Sprintf("unknown step: %d", input.Step))
	}

	if input.SubmitForReview {
		// Full re-validation on the final action
		if err := ValidateBasicInfo(&merged, now); err != nil {
			return nil, err
		}
		if err := ValidateTrackCount(merged.DistributionType, len(tracks)); err != nil {
			return nil, err
		}
		if err := ValidateTracksStep(tracks); err != nil {
			return nil, err
		}
		if err := ValidateTerms(&merged); err != nil {
			return nil, err
		}
		if !identityVerified {
			return nil, ErrIdentityRequired
		}
		if !CanTransition(current.Status, StatusUnderReview) {
			return nil, ErrInvalidTransition
		}
	}

	tx, err := m.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stores, err := marshalJSON(merged.SelectedStores)
	if err != nil {
		return nil, err
	}
	fanEngagement, err := marshalJSON(merged.FanEngagement)
	if err != nil {
		return nil, err
	}

	step := input.Step
	if step < current.CurrentStep {
		step = current.CurrentStep
	}

	status := current.Status
	// Reviewed releases go back into the queue as soon as they are edited
	if status == StatusApproved || status == StatusRejected {
		status = StatusUnderReview
	}
	var submittedAt interface{}
	if input.SubmitForReview {
		status = StatusUnderReview
		submittedAt = now
	} else if current.SubmittedAt != nil {
		submittedAt = *current.SubmittedAt
	}

	_, err = tx.Exec(`
		UPDATE releases
		SET release_title = ?, genre = ?, language = ?, label = ?, c_line = ?, p_line = ?,
		    album_cover_url = ?, selected_stores = ?, track_price = ?, release_date = ?,
		    terms_agreed = ?, fair_use_agreed = ?, snapchat_terms_agreed = ?, fan_engagement = ?,
		    status = ?, current_step = ?, submitted_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, merged.ReleaseTitle, merged.Genre, merged.Language, merged.Label, merged.CLine, merged.PLine,
		merged.AlbumCoverURL, stores, merged.TrackPrice, nullIfEmpty(merged.ReleaseDate),
		merged.TermsAgreed, merged.FairUseAgreed, merged.SnapchatTermsAgreed, fanEngagement,
		status, step, submittedAt, current.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update release: %w", err)
	}

	if input.Tracks != nil {
		if _, err := tx.Exec(`DELETE FROM tracks WHERE release_id = ?`, current.ID); err != nil {
			return nil, fmt.Errorf("failed to clear tracks: %w", err)
		}
		if err := insertTracks(tx, current.ID, tracks); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit release update: %w", err)
	}

	return m.GetByID(current.ID)
}

// Delete removes a draft release (cascades to tracks). Non-draft statuses
// are rejected; ownership misses come back as ErrNotFound.
func (m *ReleaseModel) Delete(id, artistID int64) error {
	release, err := m.GetForArtist(id, artistID)
	if err != nil {
		return err
	}
	if release.Status != StatusDraft {
		return ErrNotDraft
	}

	_, err = m.DB.Exec(`DELETE FROM releases WHERE id = ? AND artist_id = ?`, id, artistID)
	if err != nil {
		return fmt.Errorf("failed to delete release: %w", err)
	}
	return nil
}

// SetStatus performs an admin review transition, recording the reviewer
// decision time and optional rejection reason
func (m *ReleaseModel) SetStatus(id int64, to ReleaseStatus, rejectionReason string) (*Release, error) {
	release, err := m.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(release.Status, to) {
		return nil, ErrInvalidTransition
	}

	_, err = m.DB.Exec(`
		UPDATE releases
		SET status = ?, rejection_reason = ?, reviewed_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, to, nullIfEmpty(rejectionReason), id)
	if err != nil {
		return nil, fmt.Errorf("failed to set release status: %w", err)
	}
	return m.GetByID(id)
}

// SetParsedLinks stores streaming links discovered by the link parser
func (m *ReleaseModel) SetParsedLinks(id int64, links []StreamingLink) error {
	data, err := marshalJSON(links)
	if err != nil {
		return err
	}
	_, err = m.DB.Exec(`
		UPDATE releases SET parsed_links = ?, has_parsed_data = 1, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, data, id)
	if err != nil {
		return fmt.Errorf("failed to store parsed links: %w", err)
	}
	return nil
}

func marshalJSON(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON field: %w", err)
	}
	return string(data), nil
}

func unmarshalJSON(src sql.NullString, dst interface{}) {
	if src.Valid && src.String != "" {
		// Best effort; a corrupt column leaves the field empty
		_ = json.Unmarshal([]byte(src.String), dst)
	}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
