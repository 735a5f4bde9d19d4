package adapter

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BAL-DMU/mapcov/internal/logging"
	m "github.com/BAL-DMU/mapcov/internal/model"
)

// TestAssociation resolves which test files exercise a mapping file.
type TestAssociation interface {
	// TestsFor returns the test ids associated with the mapping file,
	// ready to hand to the TestRunner. A file with no associated tests
	// returns an empty slice.
	TestsFor(file m.Path) []string
}

type fileTestAssociation struct {
	testsDir  string
	overrides map[string]string
	logger    *slog.Logger
}

// NewTestAssociation creates a TestAssociation over the given test
// directory. Overrides map a mapping file name to its test file name
// and win over the naming convention; maps whose test file does not
// exist resolve to no tests.
func NewTestAssociation(testsDir string, overrides map[string]string) TestAssociation {
	return &fileTestAssociation{
		testsDir:  testsDir,
		overrides: overrides,
		logger:    logging.New("testassoc"),
	}
}

func (a *fileTestAssociation) TestsFor(file m.Path) []string {
	name, ok := a.overrides[string(file)]
	if !ok {
		name = conventionTestFile(file)
	}

	id := filepath.Join(a.testsDir, name)

	if _, err := os.Stat(id); err != nil {
		a.logger.Debug("no test file for map",
			slog.String("map", string(file)),
			slog.String("candidate", id))

		return nil
	}

	return []string{id}
}

var camelBoundaryRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// conventionTestFile derives the conventional test file name for a
// mapping file: CamelCase becomes snake_case with a test_ prefix, so
// PatientToSubject.map resolves to test_patient_to_subject.py.
func conventionTestFile(file m.Path) string {
	base := strings.TrimSuffix(string(file), mapFileExt)
	snake := camelBoundaryRe.ReplaceAllString(base, "${1}_${2}")

	return "test_" + strings.ToLower(snake) + ".py"
}
