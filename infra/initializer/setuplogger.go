package initializer

import (
	"io"
	"log/slog"
	"os"

	"github.com/amirasaad/ledger/pkg/config"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(cfg *config.Log) *slog.Logger {
	slogger := newLogger(os.Stdout, cfg)
	slog.SetDefault(slogger)
	return slogger
}

func newLogger(w io.Writer, cfg *config.Log) *slog.Logger {
	if cfg == nil {
		cfg = &config.Log{Format: "text"}
	}
	styles := log.DefaultStyles()
	infoTxtColor := lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}
	warnTxtColor := lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#EE6FF8"}
	errorTxtColor := lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF6B6B"}
	debugTxtColor := lipgloss.AdaptiveColor{Light: "#7E57C2", Dark: "#7E57C2"}

	// Customize the style for each log level
	// Error level styling
	styles.Levels[log.ErrorLevel] = lipgloss.NewStyle().
		SetString("❌").
		Bold(true).
		Padding(0, 1).
		Foreground(errorTxtColor)

	// Info level styling
	styles.Levels[log.InfoLevel] = lipgloss.NewStyle().
		SetString("ℹ️").
		Bold(true).
		Padding(0, 1).
		Foreground(infoTxtColor)

	// Warn level styling
	styles.Levels[log.WarnLevel] = lipgloss.NewStyle().
		SetString("⚠️").
		Bold(true).
		Padding(0, 1).
		Foreground(warnTxtColor)

	// Debug level styling
	styles.Levels[log.DebugLevel] = lipgloss.NewStyle().
		SetString("🐛").
		Bold(true).
		Padding(0, 1).
		Foreground(debugTxtColor)

	styles.Keys["error"] = lipgloss.NewStyle().Foreground(errorTxtColor)
	styles.Values["error"] = lipgloss.NewStyle().Bold(true)
	styles.Keys["info"] = lipgloss.NewStyle().Foreground(infoTxtColor)
	styles.Values["info"] = lipgloss.NewStyle().Bold(true)
	styles.Keys["warn"] = lipgloss.NewStyle().Foreground(warnTxtColor)
	styles.Values["warn"] = lipgloss.NewStyle().Bold(true)
	styles.Keys["debug"] = lipgloss.NewStyle().Foreground(debugTxtColor)
	styles.Values["debug"] = lipgloss.NewStyle().Bold(true)
	styles.Keys["prefix"] = lipgloss.NewStyle().Foreground(debugTxtColor)
	styles.Values["prefix"] = lipgloss.NewStyle().Bold(true)
	styles.Keys["transaction_id"] = lipgloss.NewStyle().Foreground(infoTxtColor)
	styles.Values["transaction_id"] = lipgloss.NewStyle().Bold(true)
	styles.Keys["operation"] = lipgloss.NewStyle().Foreground(warnTxtColor)
	styles.Values["operation"] = lipgloss.NewStyle().Bold(true)

	formattersMap := map[string]log.Formatter{
		"json": log.JSONFormatter,
		"text": log.TextFormatter,
	}
	formatter := log.TextFormatter
	if f, ok := formattersMap[cfg.Format]; ok {
		formatter = f
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Level < int(log.InfoLevel),
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		Level:           log.Level(cfg.Level),
		Prefix:          cfg.Prefix,
		Formatter:       formatter,
	})

	logger.SetStyles(styles)

	return slog.New(logger)
}
