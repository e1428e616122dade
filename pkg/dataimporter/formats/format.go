package formats

import (
	"fmt"
	"strings"
)

type Format string

const (
	FormatGTFS   Format = "gtfs"
	FormatNaPTAN Format = "naptan"
)

func Parse(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case "", FormatGTFS:
		return FormatGTFS, nil
	case FormatNaPTAN:
		return FormatNaPTAN, nil
	default:
		return "", fmt.Errorf("unknown stop dataset format %q", name)
	}
}
