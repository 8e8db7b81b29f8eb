package fetcher

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/voyagen/worldtv/internal/models"
)

var (
	reTvgID       = regexp.MustCompile(`tvg-id="([^"]*)"`)
	reTvgLogo     = regexp.MustCompile(`tvg-logo="([^"]*)"`)
	reTvgCountry  = regexp.MustCompile(`tvg-country="([^"]*)"`)
	reTvgLanguage = regexp.MustCompile(`tvg-language="([^"]*)"`)
	reGroup       = regexp.MustCompile(`group-title="([^"]*)"`)
)

const extinfPrefix = "#EXTINF:"

// maxLineSize handles long lines (some M3U have very long EXTINF lines).
const maxLineSize = 1024 * 1024

// ParseOptions controls record acceptance and id generation.
type ParseOptions struct {
	// AllowedSchemes restricts stream URLs to these schemes (e.g. "https").
	// Empty accepts any URL.
	AllowedSchemes []string
	// IDPrefix seeds the per-run channel ids: "<prefix>-<n>".
	IDPrefix string
}

// Parse converts M3U text into channel records. It never fails:
// malformed input yields fewer records.
func Parse(text string, opts ParseOptions) []models.Channel {
	channels, _ := ParseReader(strings.NewReader(text), opts)
	return channels
}

// ParseReader reads an M3U playlist from r. The returned error only reports
// read failures; records parsed before the failure are still returned.
func ParseReader(r io.Reader, opts ParseOptions) ([]models.Channel, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	prefix := opts.IDPrefix
	if prefix == "" {
		prefix = "channel"
	}

	var (
		channels []models.Channel
		pending  *models.Channel
		index    int
	)
	for {
		raw, tooLong, err := readLine(br)
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			return channels, err
		}
		line := strings.TrimSpace(raw)
		if tooLong {
			// An oversized line loses only its own record; other directives
			// leave the pending entry alone.
			if !strings.HasPrefix(line, "#") || hasPrefixFold(line, extinfPrefix) {
				pending = nil
			}
			continue
		}
		switch {
		case line == "":
			continue
		case hasPrefixFold(line, extinfPrefix):
			// Previous EXTINF without URL is overwritten (malformed).
			ch := parseExtInf(line)
			ch.ID = prefix + "-" + strconv.Itoa(index)
			index++
			pending = &ch
		case strings.HasPrefix(line, "#"):
			continue
		default:
			// URL line
			if pending == nil {
				continue
			}
			if schemeAllowed(line, opts.AllowedSchemes) {
				pending.URL = line
				channels = append(channels, *pending)
			}
			pending = nil
		}
	}
}

// readLine returns the next line without its terminator. Lines longer than
// maxLineSize are consumed and reported as tooLong with only their head
// returned. err is io.EOF only when no more input remains.
func readLine(br *bufio.Reader) (line string, tooLong bool, err error) {
	var buf []byte
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) && (len(buf) > 0 || tooLong) {
				return string(buf), tooLong, nil
			}
			return "", false, err
		}
		if !tooLong {
			buf = append(buf, chunk...)
			if len(buf) > maxLineSize {
				tooLong, buf = true, buf[:64]
			}
		}
		if !isPrefix {
			return string(buf), tooLong, nil
		}
	}
}

// parseExtInf extracts the optional attributes of an #EXTINF line and fills
// defaults for the absent ones. The name is the text after the last comma.
func parseExtInf(line string) models.Channel {
	ch := models.Channel{
		Name:      models.DefaultName,
		Country:   models.DefaultCountry,
		Category:  models.DefaultCategory,
		Languages: []string{},
		TvgID:     matchFirst(reTvgID, line),
		Logo:      matchFirst(reTvgLogo, line),
	}
	if s := matchFirst(reTvgCountry, line); s != "" {
		ch.Country = s
	}
	if s := matchFirst(reGroup, line); s != "" {
		ch.Category = s
	}
	if s := matchFirst(reTvgLanguage, line); s != "" {
		ch.Languages = splitList(s)
	}
	if i := strings.LastIndex(line, ","); i >= 0 {
		if name := strings.TrimSpace(line[i+1:]); name != "" {
			ch.Name = name
		}
	}
	return ch
}

func matchFirst(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// splitList splits a ';'-separated attribute value, dropping empty items.
func splitList(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func schemeAllowed(url string, schemes []string) bool {
	if len(schemes) == 0 {
		return true
	}
	for _, s := range schemes {
		if hasPrefixFold(url, s+"://") {
			return true
		}
	}
	return false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
