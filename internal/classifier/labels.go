package classifier

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// maxLabelLineLength bounds a single line of the labels file.
const maxLabelLineLength = 64 * 1024

// LoadLabels reads one label per line from r. Trailing whitespace, including
// carriage returns, is trimmed. Line i is the label of output index i, so a
// blank line followed by another label is rejected; blank lines at the end
// of the file are ignored.
func LoadLabels(r io.Reader) ([]string, error) {
	var labels []string
	blankLine := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLabelLineLength)
	for line := 1; scanner.Scan(); line++ {
		label := strings.TrimRightFunc(scanner.Text(), isSpace)
		label = strings.TrimPrefix(label, "\ufeff")
		if strings.TrimSpace(label) == "" {
			if blankLine == 0 {
				blankLine = line
			}
			continue
		}
		if blankLine != 0 {
			return nil, errors.New(fmt.Errorf("%w: labels file has a blank line at line %d", ErrModelLoad, blankLine)).
				Component(componentName).
				Category(errors.CategoryLabelLoad).
				Context("line", blankLine).
				Build()
		}
		labels = append(labels, label)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(fmt.Errorf("%w: reading labels: %w", ErrModelLoad, err)).
			Component(componentName).
			Category(errors.CategoryLabelLoad).
			Build()
	}
	if len(labels) == 0 {
		return nil, errors.New(fmt.Errorf("%w: labels file is empty", ErrModelLoad)).
			Component(componentName).
			Category(errors.CategoryLabelLoad).
			Build()
	}

	return labels, nil
}

// LoadLabelFile reads labels from the file at path.
func LoadLabelFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New(fmt.Errorf("%w: open labels: %w", ErrModelLoad, err)).
			Component(componentName).
			Category(errors.CategoryLabelLoad).
			FileContext(path, 0).
			Build()
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			GetLogger().Warn("failed to close labels file", logger.Error(cerr))
		}
	}()

	return LoadLabels(f)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '\v' || r == '\f'
}
