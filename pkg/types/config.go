package types

import "errors"

// Config holds the workspace layout and comparison defaults for a notesync run.
type Config struct {
	RecordFile  string  `json:"record_file" yaml:"record_file"`
	SummaryFile string  `json:"summary_file" yaml:"summary_file"`
	AbsError    float64 `json:"abs_error" yaml:"abs_error"`
	RelError    float64 `json:"rel_error" yaml:"rel_error"`
	History     bool    `json:"history" yaml:"history"`
	DataDir     string  `json:"data_dir,omitempty" yaml:"data_dir,omitempty"`
}

// Defaults used when no configuration overrides them.
const (
	DefaultRecordFile  = "notes.yaml"
	DefaultSummaryFile = "notes_summary.csv"
	DefaultAbsError    = 1e-15
	DefaultRelError    = 1e-15
)

// Config validation errors.
var (
	ErrRecordFileEmpty  = errors.New("record file name must not be empty")
	ErrSummaryFileEmpty = errors.New("summary file name must not be empty")
	ErrToleranceInvalid = errors.New("tolerances must be non-negative")
)

// DefaultConfig returns the configuration used when config.yaml is absent.
func DefaultConfig() Config {
	return Config{
		RecordFile:  DefaultRecordFile,
		SummaryFile: DefaultSummaryFile,
		AbsError:    DefaultAbsError,
		RelError:    DefaultRelError,
		History:     true,
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.RecordFile == "" {
		return ErrRecordFileEmpty
	}
	if c.SummaryFile == "" {
		return ErrSummaryFileEmpty
	}
	if c.AbsError < 0 || c.RelError < 0 {
		return ErrToleranceInvalid
	}
	return nil
}
