package config

// ReportsConfig configures PDF report generation.
type ReportsConfig struct {
	Dir      string `yaml:"dir"`       // scratch directory for rendered files
	Keep     bool   `yaml:"keep"`      // keep files after upload
	FontPath string `yaml:"font_path"` // optional UTF-8 TTF for non-Latin text
}
