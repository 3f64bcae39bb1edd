package tracker

import "strconv"

// DayOrdinal renders a day of month with an upper-case English suffix:
// 1ST, 2ND, 3RD, 4TH, 11TH, 12TH, 13TH, 21ST, 22ND, 23RD, 31ST.
func DayOrdinal(day int) string {
	suffix := "TH"
	if day < 11 || day > 13 {
		switch day % 10 {
		case 1:
			suffix = "ST"
		case 2:
			suffix = "ND"
		case 3:
			suffix = "RD"
		}
	}
	return strconv.Itoa(day) + suffix
}
