package datacontext

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/verityhq/verity/pkg/config"
)

// Environment variables consulted for machine-global overrides. The
// environment always wins over the global config files.
const (
	EnvUsageStats         = "VERITY_USAGE_STATS"
	EnvContextID          = "VERITY_CONTEXT_ID"
	EnvUsageStatisticsURL = "VERITY_USAGE_STATISTICS_URL"
)

// Section and option names read from the global config files.
const (
	globalConfigSection = "usage_statistics"
	optionEnabled       = "enabled"
	optionContextID     = "context_id"
	optionURL           = "url"
)

// falseyLiterals extends standard boolean parsing for the opt-out flag.
var falseyLiterals = map[string]bool{
	"FALSE": true, "false": true, "False": true,
	"f": true, "F": true, "0": true,
}

// DefaultGlobalConfigPaths returns the machine-global config file locations
// probed in order, first match wins: a per-user file under the home
// directory, then the system-wide file.
func DefaultGlobalConfigPaths() []string {
	var paths []string
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".verity", "verity.conf"))
	}
	return append(paths, "/etc/verity.conf")
}

// globalOverrideResolver reads usage statistics overrides from the process
// environment and an ordered list of INI-format global config files.
type globalOverrideResolver struct {
	paths  []string
	logger *zap.Logger
}

func newGlobalOverrideResolver(paths []string, log *zap.Logger) *globalOverrideResolver {
	if paths == nil {
		paths = DefaultGlobalConfigPaths()
	}
	return &globalOverrideResolver{
		paths:  paths,
		logger: log.With(zap.String("component", "global_overrides")),
	}
}

// isUsageStatsOptedOut reports whether this machine opts out of usage
// statistics. Unrecognized values fail open: a misconfigured opt-out must not
// silently disable telemetry and must not break context construction.
func (g *globalOverrideResolver) isUsageStatsOptedOut() bool {
	if value, ok := os.LookupEnv(EnvUsageStats); ok {
		return g.parseOptOut(value, "environment variable "+EnvUsageStats)
	}
	if value, ok := g.fileOption(optionEnabled); ok {
		return g.parseOptOut(value, "global config file")
	}
	return false
}

// parseOptOut interprets value as the "enabled" flag; false means opted out.
func (g *globalOverrideResolver) parseOptOut(value, source string) bool {
	if falseyLiterals[value] {
		return true
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		g.logger.Warn("unrecognized usage statistics flag, treating as enabled",
			zap.String("source", source), zap.String("value", value))
		return false
	}
	return !enabled
}

// overrideContextID returns the globally configured context id, if any.
func (g *globalOverrideResolver) overrideContextID() string {
	if value := os.Getenv(EnvContextID); value != "" {
		return value
	}
	value, _ := g.fileOption(optionContextID)
	return value
}

// overrideUsageStatsURL returns the globally configured statistics endpoint,
// if any.
func (g *globalOverrideResolver) overrideUsageStatsURL() string {
	if value := os.Getenv(EnvUsageStatisticsURL); value != "" {
		return value
	}
	value, _ := g.fileOption(optionURL)
	return value
}

// fileOption scans the global config files in order and returns the first
// occurrence of the option in the usage statistics section. Unreadable files
// are skipped.
func (g *globalOverrideResolver) fileOption(option string) (string, bool) {
	for _, path := range g.paths {
		file, err := ini.Load(path)
		if err != nil {
			continue
		}
		section := file.Section(globalConfigSection)
		if !section.HasKey(option) {
			continue
		}
		return section.Key(option).String(), true
	}
	return "", false
}

// applyGlobalOverrides returns a copy of cfg with machine-global overrides
// applied. Invalid override values are collected and reported in one batch
// warning; they are skipped, never raised.
func applyGlobalOverrides(cfg *config.ProjectConfig, resolver *globalOverrideResolver) *config.ProjectConfig {
	out := cfg.Clone()

	var problems []string

	if resolver.isUsageStatsOptedOut() {
		disabled := false
		out.UsageStatistics.Enabled = &disabled
	}

	if id := resolver.overrideContextID(); id != "" {
		if err := config.ValidateContextID(id); err != nil {
			problems = append(problems, fmt.Sprintf("context_id override %q: %v", id, err))
		} else {
			out.UsageStatistics.ContextID = id
		}
	}

	if url := resolver.overrideUsageStatsURL(); url != "" {
		if err := config.ValidateUsageStatisticsURL(url); err != nil {
			problems = append(problems, fmt.Sprintf("usage statistics url override %q: %v", url, err))
		} else {
			out.UsageStatistics.URL = url
		}
	}

	if len(problems) > 0 {
		resolver.logger.Warn("ignoring invalid global overrides", zap.Strings("problems", problems))
	}
	return out
}
