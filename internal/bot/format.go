package bot

import (
	"fmt"
	"strings"

	"github.com/C0okiesl/KopiRadar/internal/model"
)

// FormatLocationList formats a user's saved locations for display.
func FormatLocationList(locs []model.SavedLocation) string {
	if len(locs) == 0 {
		return "You have not added any locations yet"
	}

	var b strings.Builder
	for i, l := range locs {
		fmt.Fprintf(&b, "%d. %s (%v, %v)\n", i, l.Name, l.Lat, l.Lng)
	}
	return b.String()
}
