package tracklist

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"cinesync/internal/providers"
)

// Track extraction tries three shapes in order: list items, tables with a
// recognizable title column, then numbered plain-text lines. The first shape
// that yields tracks wins.

var (
	quotedTitle  = regexp.MustCompile(`"([^"]+)"`)
	numberedLine = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)
	footnoteRef  = regexp.MustCompile(`\[\d+\]`)
)

// ExtractTracks parses a soundtrack section's HTML into an ordered tracklist.
// Returns nil when no recognizable shape is present.
func ExtractTracks(sectionHTML string) []providers.Track {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(sectionHTML))
	if err != nil {
		return nil
	}
	if tracks := tracksFromListItems(doc); len(tracks) > 0 {
		return tracks
	}
	if tracks := tracksFromTables(doc); len(tracks) > 0 {
		return tracks
	}
	return tracksFromNumberedLines(doc.Text())
}

func tracksFromListItems(doc *goquery.Document) []providers.Track {
	var tracks []providers.Track
	doc.Find("ol li, ul li").Each(func(_ int, item *goquery.Selection) {
		line := cleanCell(item.Text())
		if line == "" {
			return
		}
		title, singers := splitTrackLine(line)
		if title == "" {
			return
		}
		tracks = append(tracks, providers.Track{Title: title, Singers: singers})
	})
	return tracks
}

// tracksFromTables scans each table for a header naming a title column and,
// optionally, a singer/artist column.
func tracksFromTables(doc *goquery.Document) []providers.Track {
	var tracks []providers.Track
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		titleCol, singerCol := headerColumns(table)
		if titleCol < 0 {
			return true
		}
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() <= titleCol {
				return
			}
			title := cleanCell(cells.Eq(titleCol).Text())
			title = strings.Trim(title, `"`)
			if title == "" || strings.EqualFold(title, "title") {
				return
			}
			var singers []string
			if singerCol >= 0 && cells.Length() > singerCol {
				singers = splitNames(cleanCell(cells.Eq(singerCol).Text()))
			}
			tracks = append(tracks, providers.Track{Title: title, Singers: singers})
		})
		return len(tracks) == 0
	})
	return tracks
}

// headerColumns finds the indices of the title and singer columns, or -1.
func headerColumns(table *goquery.Selection) (titleCol, singerCol int) {
	titleCol, singerCol = -1, -1
	table.Find("tr").First().Find("th").Each(func(i int, header *goquery.Selection) {
		text := strings.ToLower(cleanCell(header.Text()))
		switch {
		case titleCol < 0 && strings.Contains(text, "title"):
			titleCol = i
		case titleCol < 0 && strings.Contains(text, "song"):
			titleCol = i
		case singerCol < 0 && (strings.Contains(text, "singer") || strings.Contains(text, "artist")):
			singerCol = i
		}
	})
	return titleCol, singerCol
}

func tracksFromNumberedLines(text string) []providers.Track {
	var tracks []providers.Track
	for _, line := range strings.Split(text, "\n") {
		matches := numberedLine.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		title, singers := splitTrackLine(cleanCell(matches[1]))
		if title == "" {
			continue
		}
		tracks = append(tracks, providers.Track{Title: title, Singers: singers})
	}
	return tracks
}

// splitTrackLine separates a "Title" – Singer A, Singer B line. A quoted
// span is the title; otherwise everything before the first dash is.
func splitTrackLine(line string) (string, []string) {
	title := ""
	rest := line
	if matches := quotedTitle.FindStringSubmatchIndex(line); matches != nil {
		title = line[matches[2]:matches[3]]
		rest = line[matches[1]:]
	} else {
		for _, dash := range []string{" – ", " — ", " - "} {
			if before, after, found := strings.Cut(line, dash); found {
				title = before
				rest = after
				break
			}
		}
		if title == "" {
			title = line
			rest = ""
		}
	}
	title = strings.TrimSpace(strings.Trim(strings.TrimSpace(title), `"`))
	if title == "" || len(title) > 120 {
		return "", nil
	}
	rest = strings.TrimLeft(strings.TrimSpace(rest), "–—- ")
	return title, splitNames(rest)
}

func splitNames(raw string) []string {
	if raw == "" {
		return nil
	}
	raw = strings.NewReplacer(" & ", ",", " and ", ",", ";", ",").Replace(raw)
	parts := strings.Split(raw, ",")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" && len(part) <= 60 {
			names = append(names, part)
		}
	}
	return names
}

func cleanCell(text string) string {
	text = footnoteRef.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}
