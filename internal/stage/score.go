package stage

import (
	"fmt"
	"strings"

	"github.com/ashita-ai/tenran/internal/model"
)

// Artist scoring weights. Theme concept match dominates, movement
// alignment second, then chronological fit and a diversity component.
const (
	artistThemeWeight      = 0.35
	artistMovementWeight   = 0.30
	artistChronologyWeight = 0.20
	artistDiversityWeight  = 0.15
)

// Artwork scoring weights. Attribution to the selected artist carries
// the most weight; wrong attribution is heavily penalized.
const (
	artworkArtistWeight = 0.40
	artworkThemeWeight  = 0.25
	artworkDateWeight   = 0.20
	artworkVisualWeight = 0.15
)

// modernMovements are the movement keywords that signal alignment with
// a modern-art collection profile.
var modernMovements = []string{
	"abstract", "expressionism", "minimalism", "modernism", "contemporary",
	"cubism", "surrealism", "de stijl", "color field", "geometric",
	"conceptual", "pop art", "post-modern", "avant-garde",
}

// scoreArtist computes a [0,1] relevance score and a short reasoning
// string for an artist candidate against the theme concepts.
func scoreArtist(a model.ArtistCandidate, concepts, referenceArtists []string) (float64, string) {
	desc := strings.ToLower(a.Biography)
	var reasons []string

	themeScore := artistThemeMatch(desc, concepts)
	theme := themeScore * artistThemeWeight
	if themeScore >= 0.7 {
		var matched []string
		for _, c := range concepts {
			if strings.Contains(desc, strings.ToLower(c)) {
				matched = append(matched, c)
			}
		}
		if len(matched) > 3 {
			matched = matched[:3]
		}
		if len(matched) > 0 {
			reasons = append(reasons, "Strong theme alignment ("+strings.Join(matched, ", ")+")")
		}
	}

	movementScore := movementAlignment(a, desc)
	if movementScore >= 0.5 {
		reasons = append(reasons, "Relevant modern art movement")
	}

	chrono := chronologicalFit(a.BirthYear)

	// Diversity weight is reserved but never inferred: the upstream
	// sources carry no reliable representation metadata, so guessing
	// from names or descriptions would be worse than scoring zero.
	diversity := 0.0

	for _, ref := range referenceArtists {
		if strings.EqualFold(ref, a.Name) {
			if theme < 0.30 {
				theme = 0.30
			}
			reasons = append(reasons, "Curator reference artist")
			break
		}
	}

	score := theme + movementScore*artistMovementWeight + chrono*artistChronologyWeight + diversity*artistDiversityWeight
	if score > 1.0 {
		score = 1.0
	}

	reasoning := "Artist shows moderate relevance to exhibition theme."
	if len(reasons) > 0 {
		reasoning = strings.Join(reasons, ". ") + "."
	}
	return score, reasoning
}

// artistThemeMatch scores concept overlap against the artist's
// description: 0.3 base plus 0.2 per matched concept.
func artistThemeMatch(desc string, concepts []string) float64 {
	if len(concepts) == 0 {
		return 0.5
	}
	if desc == "" {
		return 0.3
	}
	matches := 0
	for _, c := range concepts {
		if strings.Contains(desc, strings.ToLower(c)) {
			matches++
		}
	}
	score := 0.3 + float64(matches)*0.2
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// movementAlignment counts modern-movement keywords across the
// artist's tagged movements and description.
func movementAlignment(a model.ArtistCandidate, desc string) float64 {
	searchable := desc
	for _, m := range a.Movements {
		searchable += " " + strings.ToLower(m)
	}
	if strings.TrimSpace(searchable) == "" {
		return 0.3
	}
	matches := 0
	for _, m := range modernMovements {
		if strings.Contains(searchable, m) {
			matches++
		}
	}
	switch {
	case matches >= 3:
		return 1.0
	case matches == 2:
		return 0.8
	case matches == 1:
		return 0.6
	default:
		return 0.3
	}
}

// chronologicalFit favors artists born into the modern era.
func chronologicalFit(birthYear int) float64 {
	switch {
	case birthYear == 0:
		return 0.5
	case birthYear >= 1950:
		return 1.0
	case birthYear >= 1900:
		return 0.9
	case birthYear >= 1880:
		return 0.7
	case birthYear >= 1850:
		return 0.5
	default:
		return 0.3
	}
}

// scoreArtwork computes a [0,1] relevance score and reasoning for an
// artwork candidate against the artist it was discovered for.
func scoreArtwork(w model.ArtworkCandidate, artistName string, concepts []string, yearFrom, yearTo int) (float64, string) {
	var reasons []string

	artworkArtist := strings.ToLower(w.ArtistName)
	wanted := strings.ToLower(artistName)
	artistScore := 0.05
	if artworkArtist != "" && (strings.Contains(artworkArtist, wanted) || strings.Contains(wanted, artworkArtist)) {
		artistScore = artworkArtistWeight
		reasons = append(reasons, "By "+artistName)
	}

	themeScore := artworkThemeAlignment(w, concepts)
	if themeScore >= 0.7 {
		reasons = append(reasons, "Strong thematic fit")
	}

	dateScore := dateRelevance(yearOfArtwork(w), yearFrom, yearTo)

	visualScore := visualQuality(w)
	if w.IIIFManifest != "" {
		reasons = append(reasons, "IIIF available")
	}

	score := artistScore + themeScore*artworkThemeWeight + dateScore*artworkDateWeight + visualScore*artworkVisualWeight
	if score > 1.0 {
		score = 1.0
	}

	title := w.Title
	if title == "" {
		title = "Untitled"
	}
	reasoning := fmt.Sprintf("%q shows moderate relevance.", title)
	if len(reasons) > 0 {
		reasoning = fmt.Sprintf("%q: %s.", title, strings.Join(reasons, ", "))
	}
	return score, reasoning
}

func artworkThemeAlignment(w model.ArtworkCandidate, concepts []string) float64 {
	if len(concepts) == 0 {
		return 0.5
	}
	searchable := strings.ToLower(w.Title + " " + w.Medium)
	matches := 0
	for _, c := range concepts {
		if strings.Contains(searchable, strings.ToLower(c)) {
			matches++
		}
	}
	score := 0.3 + float64(matches)*0.25
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func dateRelevance(year, from, to int) float64 {
	if year == 0 {
		return 0.4
	}
	if from == 0 || to == 0 {
		if year >= 1880 {
			return 1.0
		}
		return 0.5
	}
	switch {
	case year >= from && year <= to:
		return 1.0
	case year >= from-10 && year <= to+10:
		return 0.7
	default:
		return 0.3
	}
}

// visualQuality scores the digitization quality of a record: a IIIF
// manifest is worth the most, a thumbnail less, plus a completeness
// bonus.
func visualQuality(w model.ArtworkCandidate) float64 {
	score := 0.0
	if w.IIIFManifest != "" {
		score += 0.5
	}
	if w.ThumbnailURL != "" {
		score += 0.2
	}
	score += w.CompletenessScore * 0.2
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// completeness measures how many of the display-critical metadata
// fields a candidate carries.
func completeness(w model.ArtworkCandidate) float64 {
	fields := []string{w.Title, w.ArtistName, w.DateCreated, w.Medium, w.InstitutionName, w.ThumbnailURL}
	filled := 0
	for _, f := range fields {
		if f != "" {
			filled++
		}
	}
	return float64(filled) / float64(len(fields))
}

// yearOfArtwork parses the leading 4-digit year out of the free-text
// creation date.
func yearOfArtwork(w model.ArtworkCandidate) int {
	s := strings.TrimSpace(w.DateCreated)
	if len(s) < 4 {
		return 0
	}
	year := 0
	for i := 0; i < 4; i++ {
		d := s[i]
		if d < '0' || d > '9' {
			return 0
		}
		year = year*10 + int(d-'0')
	}
	return year
}
