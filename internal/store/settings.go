package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"tinytales/internal/services"
)

// Setting keys mirror the names the web client kept in local storage.
const (
	keyLimitStory        = "adminLimit_storyGeneration"
	keyLimitIllustration = "adminLimit_illustrationGeneration"
	keyLimitPDF          = "adminLimit_pdfExport"
	keyLimitGIF          = "adminLimit_gifExport"
	keyLimitVideo        = "adminLimit_videoExport"

	keyDataSource      = "adminDataSource"
	keyFirebaseConfig  = "adminFirebaseConfig"
	keyCustomAPIURL    = "adminCustomApiUrl"
	keyCustomAPIKey    = "adminCustomApiKey"
	keyAIServiceAPIKey = "adminAiServiceApiKey"
)

func (s *Store) settings(ctx context.Context) (map[string]string, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

func (s *Store) putSettings(ctx context.Context, values map[string]string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for key, value := range values {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
				key, value,
			); err != nil {
				return fmt.Errorf("write setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// GetLimits returns the global feature switches. Unset switches are off.
func (s *Store) GetLimits(ctx context.Context) (Limits, error) {
	values, err := s.settings(ctx)
	if err != nil {
		return Limits{}, err
	}
	flag := func(key string) bool {
		v, _ := strconv.ParseBool(values[key])
		return v
	}
	return Limits{
		StoryGeneration:        flag(keyLimitStory),
		IllustrationGeneration: flag(keyLimitIllustration),
		PDFExport:              flag(keyLimitPDF),
		GIFExport:              flag(keyLimitGIF),
		VideoExport:            flag(keyLimitVideo),
	}, nil
}

// SetLimits replaces the global feature switches.
func (s *Store) SetLimits(ctx context.Context, limits Limits) error {
	return s.putSettings(ctx, map[string]string{
		keyLimitStory:        strconv.FormatBool(limits.StoryGeneration),
		keyLimitIllustration: strconv.FormatBool(limits.IllustrationGeneration),
		keyLimitPDF:          strconv.FormatBool(limits.PDFExport),
		keyLimitGIF:          strconv.FormatBool(limits.GIFExport),
		keyLimitVideo:        strconv.FormatBool(limits.VideoExport),
	})
}

// GetSiteSettings returns the admin integration settings.
func (s *Store) GetSiteSettings(ctx context.Context) (SiteSettings, error) {
	values, err := s.settings(ctx)
	if err != nil {
		return SiteSettings{}, err
	}
	source, ok := ParseDataSource(values[keyDataSource])
	if !ok {
		source = DataSourceLocal
	}
	return SiteSettings{
		DataSource:      source,
		FirebaseConfig:  values[keyFirebaseConfig],
		CustomAPIURL:    values[keyCustomAPIURL],
		CustomAPIKey:    values[keyCustomAPIKey],
		AIServiceAPIKey: values[keyAIServiceAPIKey],
	}, nil
}

// SetSiteSettings replaces the admin integration settings.
func (s *Store) SetSiteSettings(ctx context.Context, settings SiteSettings) error {
	source, ok := ParseDataSource(string(settings.DataSource))
	if !ok {
		return services.Wrap(services.ErrValidation, "store", "set site settings", fmt.Sprintf("invalid data source %q", settings.DataSource), nil)
	}
	return s.putSettings(ctx, map[string]string{
		keyDataSource:      string(source),
		keyFirebaseConfig:  settings.FirebaseConfig,
		keyCustomAPIURL:    settings.CustomAPIURL,
		keyCustomAPIKey:    settings.CustomAPIKey,
		keyAIServiceAPIKey: settings.AIServiceAPIKey,
	})
}
