// Package memento loads the per-notes-root settings file and overlays it on
// the built-in defaults.
package memento

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/memento/internal/storage"
)

// Path is the settings file location relative to the notes root.
const Path = ".memento/config.json"

// Config is the merged settings object.
type Config struct {
	ExcludeFolders           []string `json:"excludeFolders"`
	DailyNotesPath           string   `json:"dailyNotesPath"`
	DailyNoteFileNameFormat  string   `json:"dailyNoteFileNameFormat"`
	DailyNoteTemplatePath    string   `json:"dailyNoteTemplatePath"`
	WeeklyNotesPath          string   `json:"weeklyNotesPath"`
	WeeklyNoteFileNameFormat string   `json:"weeklyNoteFileNameFormat"`
	WeeklyNoteTemplatePath   string   `json:"weeklyNoteTemplatePath"`
	DefaultNotePath          string   `json:"defaultNotePath"`
	PinnedFiles              []string `json:"pinnedFiles"`
	PinnedTags               []string `json:"pinnedTags"`
}

// Defaults returns a fresh copy of the built-in settings.
func Defaults() Config {
	return Config{
		ExcludeFolders:           []string{"node_modules", ".git"},
		DailyNotesPath:           "daily",
		DailyNoteFileNameFormat:  "{{year}}-{{month}}-{{day}}.md",
		WeeklyNotesPath:          "weekly",
		WeeklyNoteFileNameFormat: "{{year}}-W{{week}}.md",
		PinnedFiles:              []string{},
		PinnedTags:               []string{},
	}
}

// Validate checks that both file name formats can identify a period.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DailyNoteFileNameFormat, validation.Required, validation.By(containsToken("{{day}}"))),
		validation.Field(&c.WeeklyNoteFileNameFormat, validation.Required, validation.By(containsToken("{{week}}"))),
	)
}

func containsToken(token string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if !strings.Contains(s, token) {
			return fmt.Errorf("must contain %s", token)
		}
		return nil
	}
}

// Decode overlays the JSON object in data on the defaults. Keys replace
// defaults wholesale; arrays are not merged element-wise. A key that fails
// validation falls back to its default and the rest of the overlay is kept;
// the returned error then lists the rejected keys.
func Decode(data []byte) (Config, error) {
	cfg := Defaults()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Defaults(), fmt.Errorf("memento: decode config: %w", err)
	}
	err := cfg.Validate()
	if err == nil {
		return cfg, nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		return Defaults(), fmt.Errorf("memento: validate config: %w", err)
	}
	def := Defaults()
	if _, bad := errs["dailyNoteFileNameFormat"]; bad {
		cfg.DailyNoteFileNameFormat = def.DailyNoteFileNameFormat
	}
	if _, bad := errs["weeklyNoteFileNameFormat"]; bad {
		cfg.WeeklyNoteFileNameFormat = def.WeeklyNoteFileNameFormat
	}
	return cfg, fmt.Errorf("memento: validate config: %w", err)
}

// Load reads the settings file under the notes root. A missing file yields
// the defaults silently; an unreadable or malformed one yields the defaults
// and a warning. Invalid keys are reset individually, also with a warning.
func Load(store storage.Provider, logger *slog.Logger) Config {
	data, err := store.Read(Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("memento: read config failed, using defaults", slog.String("error", err.Error()))
		}
		return Defaults()
	}
	cfg, err := Decode(data)
	if err != nil {
		logger.Warn("memento: invalid config, affected keys use defaults",
			slog.String("path", Path),
			slog.String("error", err.Error()))
	}
	return cfg
}
