// Package size converts between human-readable size strings and byte counts.
//
// Units are binary: 1 KB = 1024 B, 1 MB = 1024 KB and so on up to TB.
package size

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel errors. Wrapped errors carry the offending input.
var (
	ErrInvalidSizeFormat = errors.New("invalid size format")
	ErrInvalidSizeValue  = errors.New("invalid size value")
)

// Unit multipliers.
const (
	B  int64 = 1
	KB       = 1024 * B
	MB       = 1024 * KB
	GB       = 1024 * MB
	TB       = 1024 * GB

	// MaxBytes is the largest value Parse accepts (1 PB).
	MaxBytes = 1024 * TB
)

type unit struct {
	name string
	mult int64
}

// largest first, so Format picks the biggest unit that fits.
var units = []unit{
	{"TB", TB},
	{"GB", GB},
	{"MB", MB},
	{"KB", KB},
	{"B", B},
}

var multipliers = map[string]int64{
	"B":  B,
	"KB": KB,
	"MB": MB,
	"GB": GB,
	"TB": TB,
}

var sizePattern = regexp.MustCompile(`^(-?[0-9]*\.?[0-9]*)\s*([A-Z]*)$`)

// Parse converts a size string such as "10 GB", "500MB" or "1.5tb" into bytes.
//
// Fractional results are rounded half-up to the nearest whole byte. The
// arithmetic is exact on the decimal text, so "1.5 GB" is 1610612736.
func Parse(text string) (int64, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" {
		return 0, fmt.Errorf("%w: size string cannot be empty", ErrInvalidSizeFormat)
	}

	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w: %q, expected a value like '10 GB', '1.5TB' or '500MB'", ErrInvalidSizeFormat, text)
	}
	num, unitName := m[1], m[2]

	if strings.HasPrefix(num, "-") {
		return 0, fmt.Errorf("%w: size cannot be negative: %q", ErrInvalidSizeFormat, text)
	}
	if !validNumber(num) {
		return 0, fmt.Errorf("%w: invalid numeric value in %q", ErrInvalidSizeFormat, text)
	}

	if unitName == "" {
		unitName = "B"
	}
	mult, ok := multipliers[unitName]
	if !ok {
		return 0, fmt.Errorf("%w: unsupported unit %q, supported: B, KB, MB, GB, TB", ErrInvalidSizeFormat, unitName)
	}

	value, ok := new(big.Rat).SetString(num)
	if !ok {
		return 0, fmt.Errorf("%w: invalid numeric value in %q", ErrInvalidSizeFormat, text)
	}
	value.Mul(value, new(big.Rat).SetInt64(mult))

	// round half-up: floor(x + 1/2)
	value.Add(value, big.NewRat(1, 2))
	bytes := new(big.Int).Quo(value.Num(), value.Denom())

	if bytes.Cmp(big.NewInt(MaxBytes)) > 0 {
		return 0, fmt.Errorf("%w: size too large: %q", ErrInvalidSizeFormat, text)
	}

	return bytes.Int64(), nil
}

// validNumber reports whether s is digits with at most one inner decimal point.
func validNumber(s string) bool {
	intPart, frac, hasDot := strings.Cut(s, ".")
	if intPart == "" {
		return false
	}
	if hasDot && frac == "" {
		return false
	}
	return strings.Trim(intPart+frac, "0123456789") == ""
}

// Format renders bytes using the largest unit whose scaled value is at least 1,
// with one decimal place: 1073741824 -> "1.0 GB". Values below 1 KB are
// rendered as whole bytes ("512 B", "0 B").
func Format(bytes int64) (string, error) {
	if bytes < 0 {
		return "", fmt.Errorf("%w: byte count cannot be negative: %d", ErrInvalidSizeValue, bytes)
	}
	if bytes < KB {
		return fmt.Sprintf("%d B", bytes), nil
	}

	for _, u := range units {
		if bytes >= u.mult {
			value := float64(bytes) / float64(u.mult)
			return strconv.FormatFloat(value, 'f', 1, 64) + " " + u.name, nil
		}
	}

	return fmt.Sprintf("%d B", bytes), nil
}

// MustFormat is Format for display code. Negative counts render as "0 B".
func MustFormat(bytes int64) string {
	s, err := Format(bytes)
	if err != nil {
		return "0 B"
	}
	return s
}

// Valid reports whether text parses as a size string.
func Valid(text string) bool {
	_, err := Parse(text)
	return err == nil
}
