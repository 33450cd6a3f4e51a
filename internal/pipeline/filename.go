package pipeline

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidFilename is returned for uploads whose name does not carry a jurisdiction.
var ErrInvalidFilename = errors.New("filename must be two uppercase letters followed by .docx, e.g. DE.docx")

var filenamePattern = regexp.MustCompile(`^([A-Z]{2})\.docx$`)

// ValidateFilename returns the jurisdiction code encoded in name. The code is
// never guessed: anything but exactly "XX.docx" is rejected.
func ValidateFilename(name string) (string, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return m[1], nil
}
