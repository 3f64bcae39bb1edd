package tracker

// siteOrder is the row order of the Moto tracker sheet. It is exogenous to the
// input: every output table carries exactly these rows in exactly this order.
var siteOrder = [...]string{
	"SITE32718", "SITE32719", "SITE32720", "SITE32721", "SITE32722",
	"SITE32723", "SITE32724", "SITE32725", "SITE32727", "SITE32728",
	"SITE32729", "SITE32730", "SITE32731", "SITE32732", "SITE32733",
	"SITE32734", "SITE32736", "SITE32737", "SITE32738", "SITE32739",
	"SITE32740", "SITE32741", "SITE32742", "SITE32743", "SITE32744",
	"SITE32745", "SITE32746", "SITE32747", "SITE32748", "SITE32749",
	"SITE32750", "SITE32751", "SITE32752", "SITE32753", "SITE32754",
	"SITE32755", "SITE32756", "SITE32757", "SITE32758", "SITE32759",
	"SITE32760", "SITE32761", "SITE32762", "SITE32763", "SITE32764",
	"SITE32765", "SITE32767", "SITE32768", "SITE32769", "SITE32771",
	"SITE32772", "SITE32773", "SITE48318", "SITE306813",
}

var siteRow = buildSiteIndex()

func buildSiteIndex() map[string]int {
	idx := make(map[string]int, len(siteOrder))
	for i, code := range siteOrder {
		idx[code] = i
	}
	return idx
}

// Sites returns a copy of the fixed site codes in tracker order.
func Sites() []string {
	out := make([]string, len(siteOrder))
	copy(out, siteOrder[:])
	return out
}

// SiteCount is the number of rows in every tracker table.
func SiteCount() int {
	return len(siteOrder)
}

// SiteRow reports the row index of a site code.
func SiteRow(code string) (int, bool) {
	i, ok := siteRow[code]
	return i, ok
}
