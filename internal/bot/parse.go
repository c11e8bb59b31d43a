package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSwitchArg parses the /filteron argument: "1" enables, "0" disables.
func ParseSwitchArg(args []string) (bool, error) {
	if len(args) < 1 {
		return false, fmt.Errorf("switch value is required")
	}
	switch args[0] {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch value %q", args[0])
}

// ParseSpecialLocationArgs parses /addspeciallocation arguments:
// <name> <lat> <lng>.
func ParseSpecialLocationArgs(args []string) (name string, lat, lng float64, err error) {
	if len(args) < 3 {
		return "", 0, 0, fmt.Errorf("usage: /addspeciallocation name lat lng")
	}

	name = args[0]
	lat, err = strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid latitude %q", args[1])
	}
	lng, err = strconv.ParseFloat(args[2], 64)
	if err != nil {
		return "", 0, 0, fmt.Errorf("invalid longitude %q", args[2])
	}
	return name, lat, lng, nil
}

func lowercase(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

func bulletList(names []string) string {
	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "- %s\n", n)
	}
	return b.String()
}
