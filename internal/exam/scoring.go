package exam

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"smarttest/internal/models"
)

var submissionPattern = regexp.MustCompile(`^\d+\*.+`)

// IsSubmission reports whether text looks like "<code>*<answers>".
func IsSubmission(text string) bool {
	return submissionPattern.MatchString(text)
}

// ParseSubmission splits "<code>*<answers>" at the first '*'.
func ParseSubmission(text string) (int, string, error) {
	codePart, answers, ok := strings.Cut(text, "*")
	if !ok {
		return 0, "", ErrMalformedAnswer
	}
	code, err := strconv.Atoi(strings.TrimSpace(codePart))
	if err != nil {
		return 0, "", ErrMalformedAnswer
	}
	return code, answers, nil
}

// ParseCode parses a test code typed by a student.
func ParseCode(text string) (int, error) {
	code, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, ErrInvalidCode
	}
	return code, nil
}

// Normalize drops every rune that is not a letter and lower-cases the rest.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Evaluate normalizes a raw submission against key. Extra answers are cut
// off; missing ones yield a *CountMismatchError.
func Evaluate(key, raw string) (string, int, error) {
	keyRunes := []rune(key)
	answers := []rune(Normalize(raw))

	if len(answers) < len(keyRunes) {
		return "", 0, &CountMismatchError{Expected: len(keyRunes), Received: len(answers)}
	}
	answers = answers[:len(keyRunes)]

	normalized := string(answers)
	return normalized, Score(key, normalized), nil
}

// Score counts positions where submitted equals key, ignoring case.
func Score(key, submitted string) int {
	keyRunes := []rune(key)
	answerRunes := []rune(submitted)

	score := 0
	for i := 0; i < len(keyRunes) && i < len(answerRunes); i++ {
		if unicode.ToLower(keyRunes[i]) == unicode.ToLower(answerRunes[i]) {
			score++
		}
	}
	return score
}

// RankResults orders rows by score, best first, breaking ties by the time
// spent, fastest first.
func RankResults(rows []models.ResultRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Elapsed() < rows[j].Elapsed()
	})
}

// BuildLeaderboard turns ranked rows into numbered entries.
func BuildLeaderboard(rows []models.ResultRow, total int) []models.LeaderboardEntry {
	entries := make([]models.LeaderboardEntry, len(rows))
	for i, row := range rows {
		entries[i] = models.LeaderboardEntry{
			Rank:       i + 1,
			UserID:     row.UserID,
			FullName:   row.FullName,
			Score:      row.Score,
			Total:      total,
			Percentage: Percentage(row.Score, total),
			Seconds:    int64(row.Elapsed().Seconds()),
		}
	}
	return entries
}

func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}

// FormatElapsed renders seconds as MM:SS; minutes are not wrapped at an hour.
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Mistake is one line of a per-question review.
type Mistake struct {
	Number  int
	Given   string
	Correct string
	OK      bool
}

// Review compares a stored submission to the key question by question.
func Review(key, submitted string) ([]Mistake, int) {
	keyRunes := []rune(key)
	answerRunes := []rune(submitted)

	lines := make([]Mistake, len(keyRunes))
	correct := 0
	for i, k := range keyRunes {
		given := "?"
		if i < len(answerRunes) {
			given = strings.ToUpper(string(answerRunes[i]))
		}
		want := strings.ToUpper(string(k))
		ok := given == want
		if ok {
			correct++
		}
		lines[i] = Mistake{Number: i + 1, Given: given, Correct: want, OK: ok}
	}
	return lines, correct
}
