package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var months = map[string]time.Month{
	"janeiro":   time.January,
	"fevereiro": time.February,
	"março":     time.March,
	"marco":     time.March,
	"abril":     time.April,
	"maio":      time.May,
	"junho":     time.June,
	"julho":     time.July,
	"agosto":    time.August,
	"setembro":  time.September,
	"outubro":   time.October,
	"novembro":  time.November,
	"dezembro":  time.December,
}

var titleDeadline = regexp.MustCompile(`(?i)inscri[çc][õo]es\s+at[ée]\s+(\d{1,2})/(\d{1,2})`)

// ParsePublicationDate reads dates printed with Portuguese month names, such as
// "julho 25, 2025" or "25 de julho de 2025".
func ParsePublicationDate(text string) (*time.Time, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	cleaned = strings.ReplaceAll(cleaned, ",", " ")
	cleaned = strings.ReplaceAll(cleaned, " de ", " ")
	parts := strings.Fields(cleaned)
	if len(parts) != 3 {
		return nil, false
	}

	monthName, dayText, yearText := parts[0], parts[1], parts[2]
	if _, ok := months[monthName]; !ok {
		monthName, dayText = parts[1], parts[0]
	}
	month, ok := months[monthName]
	if !ok {
		return nil, false
	}
	return dateOf(yearText, month, dayText)
}

// ParseBrazilianDate reads DD/MM/YYYY.
func ParseBrazilianDate(text string) (*time.Time, bool) {
	t, err := time.Parse("02/01/2006", strings.TrimSpace(text))
	if err != nil {
		return nil, false
	}
	return &t, true
}

// DeadlineFromTitle reads "inscrições até DD/MM" from a title, in the given year.
func DeadlineFromTitle(title string, year int) (*time.Time, bool) {
	m := titleDeadline.FindStringSubmatch(title)
	if m == nil {
		return nil, false
	}
	month, err := strconv.Atoi(m[2])
	if err != nil || month < 1 || month > 12 {
		return nil, false
	}
	return dateOf(strconv.Itoa(year), time.Month(month), m[1])
}

func dateOf(yearText string, month time.Month, dayText string) (*time.Time, bool) {
	year, err := strconv.Atoi(yearText)
	if err != nil {
		return nil, false
	}
	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > 31 {
		return nil, false
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month {
		return nil, false
	}
	return &t, true
}
