package discover

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/deploymenttheory/go-reiserfs/pkg/app"
)

// Validate validates a discovery request
func (r *Request) Validate() error {
	// Image path is required
	if r.ImagePath == "" {
		return app.NewError(app.ErrCodeInvalidInput, "image path is required", nil)
	}

	if r.RootPath != "" && !strings.HasPrefix(r.RootPath, "/") {
		return app.NewError(app.ErrCodeInvalidInput, "root path must be absolute", nil)
	}

	// Validate regex pattern if provided
	if r.NameRegex != "" {
		if _, err := regexp.Compile(r.NameRegex); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid regex pattern", err)
		}
	}

	// Validate size formats
	if r.MinSize != "" {
		if err := validateSizeFormat(r.MinSize); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid min-size format", err)
		}
	}
	if r.MaxSize != "" {
		if err := validateSizeFormat(r.MaxSize); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid max-size format", err)
		}
	}

	// Validate date formats
	if r.ModifiedAfter != "" {
		if _, err := time.Parse("2006-01-02", r.ModifiedAfter); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid date format for modified-after, use YYYY-MM-DD", err)
		}
	}
	if r.ModifiedBefore != "" {
		if _, err := time.Parse("2006-01-02", r.ModifiedBefore); err != nil {
			return app.NewError(app.ErrCodeInvalidInput, "invalid date format for modified-before, use YYYY-MM-DD", err)
		}
	}

	// Validate max results
	if r.MaxResults < 1 || r.MaxResults > 10000 {
		return app.NewError(app.ErrCodeInvalidInput, "max results must be between 1 and 10000", nil)
	}

	// Check for conflicting search criteria
	if r.NamePattern != "" && r.NameRegex != "" {
		return app.NewError(app.ErrCodeInvalidInput, "cannot specify both name pattern and regex", nil)
	}

	return nil
}

// validateSizeFormat validates size format strings like "10MB", "1GB"
func validateSizeFormat(size string) error {
	_, _, err := splitSize(size)
	return err
}

// splitSize separates a size string into its numeric value and unit
func splitSize(size string) (float64, string, error) {
	// " 10 MB " and "10mb" are both accepted
	size = strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(size)), " ", "")
	if size == "" {
		return 0, "", fmt.Errorf("empty size")
	}

	numPart, unit := size, ""
	if i := strings.IndexFunc(size, func(c rune) bool { return (c < '0' || c > '9') && c != '.' }); i >= 0 {
		numPart, unit = size[:i], size[i:]
	}

	if numPart == "" {
		return 0, "", fmt.Errorf("no numeric value found")
	}
	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid numeric value: %s", numPart)
	}

	if _, ok := sizeUnits[unit]; !ok {
		return 0, "", fmt.Errorf("invalid size unit: %q (valid: B, KB, MB, GB, TB)", unit)
	}
	return value, unit, nil
}

var sizeUnits = map[string]int64{
	"B":  1,
	"KB": 1024,
	"MB": 1024 * 1024,
	"GB": 1024 * 1024 * 1024,
	"TB": 1024 * 1024 * 1024 * 1024,
}

// ParseSize converts size string to bytes
func ParseSize(size string) (int64, error) {
	value, unit, err := splitSize(size)
	if err != nil {
		return 0, err
	}
	return int64(value * float64(sizeUnits[unit])), nil
}
