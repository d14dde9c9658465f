// Config loading for the notesync CLI.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/notesync/internal/paths"
	"github.com/mesh-intelligence/notesync/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	// envPrefix prefixes environment overrides, e.g. NOTESYNC_RECORD_FILE.
	envPrefix = "NOTESYNC"

	cfgKeyRecordFile  = "record_file"
	cfgKeySummaryFile = "summary_file"
	cfgKeyAbsError    = "abs_error"
	cfgKeyRelError    = "rel_error"
	cfgKeyHistory     = "history"
	cfgKeyDataDir     = "data_dir"
	cfgKeyLogLevel    = "log_level"
	cfgKeyLogFormat   = "log_format"
)

// defaultConfigYAML is the content written to config.yaml by init.
const defaultConfigYAML = `# notesync configuration

# Record file inside every run<N> and template* directory.
record_file: notes.yaml

# Summary table in the workspace directory.
summary_file: notes_summary.csv

# Tolerances used by --ignore-float-error: |a-b| <= abs_error + rel_error*|b|.
abs_error: 1e-15
rel_error: 1e-15

# Record every applied write in the history ledger.
history: true

# History data directory (optional; overridable by --data-dir flag)
# data_dir:

# Logging (overridable by --log-level and --log-format)
log_level: warn
log_format: text
`

// loadConfig reads config.yaml from the resolved config directory using
// Viper, with NOTESYNC_* environment overrides. A missing config.yaml is
// not an error.
func loadConfig(configDirFlag string) (*viper.Viper, error) {
	configDir, err := paths.ResolveConfigDir(configDirFlag)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}

	defaults := types.DefaultConfig()
	v := viper.New()
	v.SetDefault(cfgKeyRecordFile, defaults.RecordFile)
	v.SetDefault(cfgKeySummaryFile, defaults.SummaryFile)
	v.SetDefault(cfgKeyAbsError, defaults.AbsError)
	v.SetDefault(cfgKeyRelError, defaults.RelError)
	v.SetDefault(cfgKeyHistory, defaults.History)
	v.SetDefault(cfgKeyDataDir, "")
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeyLogFormat, "text")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// bindGlobalFlags binds the logging flags of cmd so that a flag given on
// the command line overrides config.yaml and the environment.
func bindGlobalFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, name := range map[string]string{
		cfgKeyLogLevel:  "log-level",
		cfgKeyLogFormat: "log-format",
	} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// configFromViper builds and validates a types.Config.
func configFromViper(v *viper.Viper) (types.Config, error) {
	cfg := types.Config{
		RecordFile:  v.GetString(cfgKeyRecordFile),
		SummaryFile: v.GetString(cfgKeySummaryFile),
		AbsError:    v.GetFloat64(cfgKeyAbsError),
		RelError:    v.GetFloat64(cfgKeyRelError),
		History:     v.GetBool(cfgKeyHistory),
		DataDir:     v.GetString(cfgKeyDataDir),
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// writeConfigIfMissing creates config.yaml with default values if the file
// does not exist. Returns whether the file was written.
func writeConfigIfMissing(configDir string) (string, bool, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return "", false, fmt.Errorf("create config directory: %w", err)
	}
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return path, false, nil
	}
	if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("stat config file: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return "", false, err
	}
	return path, true, nil
}
