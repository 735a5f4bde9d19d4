// Package config loads mapcov settings from a YAML file, applying them
// over defaults that match the LOOP FHIR2SPHN project layout.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file picked up from the working directory
// when no --config flag is given.
const DefaultPath = "mapcov.yaml"

// Duration wraps time.Duration so config values can be written as "30s"
// or "5m".
type Duration time.Duration

// UnmarshalYAML parses a duration string node.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Maps   MapsConfig   `yaml:"maps"`
	Tests  TestsConfig  `yaml:"tests"`
	Retry  RetryConfig  `yaml:"retry"`
	Report ReportConfig `yaml:"report"`
}

// EngineConfig describes the matchbox server endpoint.
type EngineConfig struct {
	BaseURL        string   `yaml:"base_url"`
	CanonicalBase  string   `yaml:"canonical_base"`
	StartupTimeout Duration `yaml:"startup_timeout"`
	PollInterval   Duration `yaml:"poll_interval"`
	RequestTimeout Duration `yaml:"request_timeout"`
}

// MapsConfig locates the mapping files. Order, when set, overrides the
// upload order otherwise derived from each file's imports.
type MapsConfig struct {
	Dir   string   `yaml:"dir"`
	Order []string `yaml:"order,omitempty"`
}

// TestsConfig describes the external test suite and how to run it.
// Overrides binds a mapping file to its test module where the naming
// convention does not apply.
type TestsConfig struct {
	Dir       string            `yaml:"dir"`
	Runner    []string          `yaml:"runner"`
	Args      []string          `yaml:"args"`
	Timeout   Duration          `yaml:"timeout"`
	Overrides map[string]string `yaml:"overrides,omitempty"`
}

// RetryConfig tunes the single retry applied to infrastructure faults.
type RetryConfig struct {
	Backoff Duration `yaml:"backoff"`
}

// ReportConfig is where coverage reports are persisted.
type ReportConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			BaseURL:        "http://localhost:8080/matchboxv3/fhir",
			CanonicalBase:  "http://research.balgrist.ch/fhir2sphn/StructureMap/",
			StartupTimeout: Duration(300 * time.Second),
			PollInterval:   Duration(5 * time.Second),
			RequestTimeout: Duration(60 * time.Second),
		},
		Maps: MapsConfig{Dir: "maps"},
		Tests: TestsConfig{
			Dir:     "tests",
			Runner:  []string{"python3", "-m", "pytest"},
			Args:    []string{"-v", "--tb=line", "-q"},
			Timeout: Duration(300 * time.Second),
			Overrides: map[string]string{
				"AllergyIntoleranceToAllergy.map":                       "test_allergy_intolerance.py",
				"ClaimToBilledDiagnosisProcedure.map":                   "test_claim_billed.py",
				"ConditionToNursingDiagnosis.map":                       "test_condition_nursing.py",
				"ConditionToProblemCondition.map":                       "test_condition_problem.py",
				"DiagnosticReportToLabTestEvent.map":                    "test_diagnostic_report.py",
				"EncounterToAdministrativeCase.map":                     "test_encounter_to_admin_case.py",
				"MedicationAdministrationToDrugAdministrationEvent.map": "test_medication_admin.py",
				"ObservationSurveyToAssessmentEvent.map":                "test_observation_survey.py",
				"ObservationVitalSignToMeasurement.map":                 "test_vital_sign_to_measurement.py",
			},
		},
		Retry:  RetryConfig{Backoff: Duration(2 * time.Second)},
		Report: ReportConfig{Path: "mapcov-report.yaml"},
	}
}

// Load reads the configuration at path over the defaults. An empty path
// falls back to DefaultPath when that file exists, and to pure defaults
// otherwise. A non-empty path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat(DefaultPath); err != nil {
			return cfg, nil
		}
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}
