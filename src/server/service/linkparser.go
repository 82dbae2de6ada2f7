package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	models "github.com/tunecast/tunecast/src/server/model"

	gocache "github.com/patrickmn/go-cache"
)

const (
	// Redirect chains from link shorteners are capped
	maxRedirects = 5

	linkCacheTTL     = 6 * time.Hour
	linkCacheCleanup = time.Hour
)

// platformHosts maps known streaming hosts to display names
var platformHosts = map[string]string{
	"open.spotify.com":    "Spotify",
	"spotify.com":         "Spotify",
	"music.apple.com":     "Apple Music",
	"itunes.apple.com":    "Apple Music",
	"music.youtube.com":   "YouTube Music",
	"youtube.com":         "YouTube",
	"youtu.be":            "YouTube",
	"deezer.com":          "Deezer",
	"www.deezer.com":      "Deezer",
	"tidal.com":           "Tidal",
	"listen.tidal.com":    "Tidal",
	"soundcloud.com":      "SoundCloud",
	"music.amazon.com":    "Amazon Music",
	"pandora.com":         "Pandora",
	"www.pandora.com":     "Pandora",
	"audiomack.com":       "Audiomack",
	"bandcamp.com":        "Bandcamp",
	"tiktok.com":          "TikTok",
	"www.tiktok.com":      "TikTok",
	"snapchat.com":        "Snapchat",
	"www.snapchat.com":    "Snapchat",
}

// LinkParser resolves artist-supplied streaming URLs to recognized
// platforms. Resolution results are cached in-process.
type LinkParser struct {
	Releases *models.ReleaseModel

	httpClient *http.Client
	cache      *gocache.Cache
}

// NewLinkParser builds a parser with redirect capping and a TTL cache
func NewLinkParser(releases *models.ReleaseModel) *LinkParser {
	return &LinkParser{
		Releases: releases,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		cache: gocache.New(linkCacheTTL, linkCacheCleanup),
	}
}

// ParseLinks resolves each URL and returns the recognized streaming links.
// Unrecognized and unreachable URLs are skipped, not errors.
func (p *LinkParser) ParseLinks(ctx context.Context, rawURLs []string) []models.StreamingLink {
	var links []models.StreamingLink
	seen := map[string]bool{}

	for _, raw := range rawURLs {
		link, ok := p.resolveOne(ctx, strings.TrimSpace(raw))
		if !ok || seen[link.Name] {
			continue
		}
		seen[link.Name] = true
		links = append(links, link)
	}
	return links
}

// ParseAndStore resolves links and persists them onto the release
func (p *LinkParser) ParseAndStore(ctx context.Context, releaseID int64, rawURLs []string) ([]models.StreamingLink, error) {
	links := p.ParseLinks(ctx, rawURLs)
	if len(links) == 0 {
		return nil, fmt.Errorf("no recognized streaming links")
	}
	if err := p.Releases.SetParsedLinks(releaseID, links); err != nil {
		return nil, err
	}
	return links, nil
}

func (p *LinkParser) resolveOne(ctx context.Context, raw string) (models.StreamingLink, bool) {
	if raw == "" {
		return models.StreamingLink{}, false
	}
	if cached, found := p.cache.Get(raw); found {
		link, ok := cached.(models.StreamingLink)
		return link, ok && link.Name != ""
	}

	finalURL := raw
	if name, ok := recognizeHost(raw); ok {
		link := models.StreamingLink{Name: name, URL: raw}
		p.cache.Set(raw, link, gocache.DefaultExpiration)
		return link, true
	}

	// Unknown host: maybe a shortener. Follow redirects and retry.
	resolved, err := p.followRedirects(ctx, raw)
	if err == nil {
		finalURL = resolved
		if name, ok := recognizeHost(finalURL); ok {
			link := models.StreamingLink{Name: name, URL: finalURL}
			p.cache.Set(raw, link, gocache.DefaultExpiration)
			return link, true
		}
	}

	// Negative result cached too, so repeated bad links stay cheap
	p.cache.Set(raw, models.StreamingLink{}, gocache.DefaultExpiration)
	return models.StreamingLink{}, false
}

func (p *LinkParser) followRedirects(ctx context.Context, raw string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, raw, nil)
	if err != nil {
		return "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	return resp.Request.URL.String(), nil
}

func recognizeHost(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Host)
	if name, ok := platformHosts[host]; ok {
		return name, true
	}
	// Subdomain match (e.g. artist.bandcamp.com)
	for known, name := range platformHosts {
		if strings.HasSuffix(host, "."+known) {
			return name, true
		}
	}
	return "", false
}
