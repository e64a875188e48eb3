package ranking

import (
	"fmt"
	"strings"
	"time"
)

// Season is a meteorological quarter of the year.
type Season string

const (
	Spring Season = "spring"
	Summer Season = "summer"
	Autumn Season = "autumn"
	Winter Season = "winter"
)

// AllSeasons lists seasons in calendar order starting from spring.
var AllSeasons = []Season{Spring, Summer, Autumn, Winter}

// ParseSeason accepts a season name case-insensitively.
func ParseSeason(s string) (Season, error) {
	switch Season(strings.ToLower(strings.TrimSpace(s))) {
	case Spring:
		return Spring, nil
	case Summer:
		return Summer, nil
	case Autumn, "fall":
		return Autumn, nil
	case Winter:
		return Winter, nil
	}
	return "", fmt.Errorf("unknown season %q", s)
}

// SeasonForMonth maps 3-5 to spring, 6-8 to summer, 9-11 to autumn and the
// rest to winter.
func SeasonForMonth(m time.Month) Season {
	switch m {
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	case time.September, time.October, time.November:
		return Autumn
	default:
		return Winter
	}
}

// SeasonAt returns the season of t in UTC.
func SeasonAt(t time.Time) Season {
	return SeasonForMonth(t.UTC().Month())
}

// SeasonTable maps each season to its keyword list.
type SeasonTable map[Season][]string

// DefaultSeasonTable returns the built-in seasonal keywords.
func DefaultSeasonTable() SeasonTable {
	return SeasonTable{
		Spring: {"سبک", "جذب سریع", "روشن‌کننده", "لایه‌بردار", "آنتی‌اکسیدان", "ویتامین C"},
		Summer: {"ضد آفتاب", "جذب سریع", "سبک", "مات‌کننده", "بدون الکل", "محافظت"},
		Autumn: {"مرطوب‌کننده", "تغذیه‌کننده", "بازسازی", "ضدچروک", "آبرسان", "پپتید"},
		Winter: {"تغذیه‌کننده", "مغذی", "شب", "روغن", "محافظ", "آبرسان"},
	}
}

// Keywords returns the keywords of s. Seasons missing from the table fall
// back to the built-in list; an explicitly empty entry stays empty.
func (t SeasonTable) Keywords(s Season) []string {
	if kws, ok := t[s]; ok {
		return kws
	}
	return DefaultSeasonTable()[s]
}
