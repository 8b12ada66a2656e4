package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var monthNames = [...]string{
	"Janeiro", "Fevereiro", "Março", "Abril", "Maio", "Junho",
	"Julho", "Agosto", "Setembro", "Outubro", "Novembro", "Dezembro",
}

// PeriodKeyOf returns the MM/YYYY bucket for t in t's location.
func PeriodKeyOf(t time.Time) string {
	return fmt.Sprintf("%02d/%d", int(t.Month()), t.Year())
}

// ParsePeriod builds a period key from loose month and year inputs ("3", "2025").
func ParsePeriod(month, year string) (string, error) {
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return "", fmt.Errorf("%w: month %q", ErrValidation, month)
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y < 1000 || y > 9999 {
		return "", fmt.Errorf("%w: year %q", ErrValidation, year)
	}
	return fmt.Sprintf("%02d/%d", m, y), nil
}

func splitPeriod(key string) (month, year int, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 2 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, false
	}
	y, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return m, y, true
}

// PeriodTitle renders a key as "Outubro de 2025". Malformed keys are returned
// unchanged.
func PeriodTitle(key string) string {
	m, y, ok := splitPeriod(key)
	if !ok {
		return key
	}
	return fmt.Sprintf("%s de %d", monthNames[m-1], y)
}

// PeriodFileSuffix renders a key as "10-2025".
func PeriodFileSuffix(key string) string {
	return strings.ReplaceAll(key, "/", "-")
}

// SortPeriodsDesc orders keys newest first by year, then month. Malformed keys
// sort last.
func SortPeriodsDesc(keys []string) {
	rank := func(key string) int {
		m, y, ok := splitPeriod(key)
		if !ok {
			return -1
		}
		return y*100 + m
	}
	sort.SliceStable(keys, func(i, j int) bool {
		return rank(keys[i]) > rank(keys[j])
	})
}
