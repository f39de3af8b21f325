package tle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed reports a structurally invalid two-line element set:
// wrong line length, wrong line number, or a checksum mismatch.
var ErrMalformed = errors.New("malformed TLE")

const lineLen = 69

// ValidateLines checks the structural validity of a two-line element
// set: 69-column lines, correct line-number prefixes, and a mod-10
// checksum in column 69 of each line. Any failure wraps ErrMalformed.
func ValidateLines(line1, line2 string) error {
	if len(line1) != lineLen {
		return fmt.Errorf("%w: line1 length %d, expected %d", ErrMalformed, len(line1), lineLen)
	}
	if len(line2) != lineLen {
		return fmt.Errorf("%w: line2 length %d, expected %d", ErrMalformed, len(line2), lineLen)
	}
	if line1[0] != '1' {
		return fmt.Errorf("%w: line1 must start with '1', got %q", ErrMalformed, line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("%w: line2 must start with '2', got %q", ErrMalformed, line2[0])
	}
	if err := verifyChecksum(line1, 1); err != nil {
		return err
	}
	return verifyChecksum(line2, 2)
}

// verifyChecksum validates the mod-10 checksum of one element line.
// Digits contribute their value, '-' contributes 1, everything else 0;
// the sum over columns 1-68 mod 10 must equal the digit in column 69.
func verifyChecksum(line string, lineNo int) error {
	sum := 0
	for _, c := range line[:lineLen-1] {
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	want := int(line[lineLen-1] - '0')
	if want < 0 || want > 9 {
		return fmt.Errorf("%w: line%d checksum column is not a digit", ErrMalformed, lineNo)
	}
	if sum%10 != want {
		return fmt.Errorf("%w: line%d checksum %d, computed %d", ErrMalformed, lineNo, want, sum%10)
	}
	return nil
}

// ParseEntry strictly parses a single two-line element set. Unlike
// Parse, any structural defect is an error: malformed elements must be
// rejected, never propagated into a silently wrong orbit.
func ParseEntry(name, line1, line2 string) (Entry, error) {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")

	if err := ValidateLines(line1, line2); err != nil {
		return Entry{}, err
	}

	noradID, err := strconv.Atoi(strings.TrimSpace(line1[2:7]))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: invalid NORAD ID %q", ErrMalformed, line1[2:7])
	}

	epoch, err := parseEpoch(strings.TrimSpace(line1[18:32]))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return Entry{
		NORADID: noradID,
		Name:    strings.TrimSpace(name),
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// Parse reads 3-line NORAD catalog format from r and returns parsed
// entries. Malformed entries are skipped with a warning log; use
// ParseEntry for the strict single-set path.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i+2 < len(lines); {
		name := lines[i]
		line1 := lines[i+1]
		line2 := lines[i+2]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resync on the next candidate triplet.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		entry, err := ParseEntry(name, line1, line2)
		if err != nil {
			logger.Warn("skipping invalid TLE entry", "name", name, "error", err)
			i += 3
			continue
		}

		entries = append(entries, entry)
		i += 3
	}

	return entries, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to
// time.Time. Year 00-56 maps to the 2000s, 57-99 to the 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	year, err := strconv.Atoi(s[:2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}
	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(s[2:], 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}

	// Day of year is 1-based: day 1.0 is 00:00 UTC on Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour))), nil
}
