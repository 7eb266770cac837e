package config

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/framecast/pixfmt"
)

// EnvPrefix prefixes every environment variable read by ApplyEnvironment.
const EnvPrefix = "FRAMECAST_"

// ApplyEnvironment updates cfg from FRAMECAST_* environment variables.
// Values that fail to parse or fall outside their bounds are logged and
// ignored, leaving the previous value in place.
func ApplyEnvironment(cfg *Config) {
	parseIntSetting("WIDTH", &cfg.Width, 1, MaxDimension)
	parseIntSetting("HEIGHT", &cfg.Height, 1, MaxDimension)
	parseIntSetting("FRAME_RATE", &cfg.FrameRate, 1, 1000)
	parseFormatSetting("SOURCE_FORMAT", &cfg.SourceFormat)
	parseIntSetting("B_FRAMES", &cfg.BFrames, 0, MaxBFrames)
	parseIntSetting("QP", &cfg.QP, NoQP, MaxQP)
	parseStringSetting("PRESET", &cfg.Preset)
	parseStringSetting("TUNE", &cfg.Tune)
	parseStringSetting("PROFILE", &cfg.Profile)
	parseIntSetting("FRAME_MULTIPLIER", &cfg.FrameMultiplier, 0, 1000)
	parseIntSetting("BIT_RATE", &cfg.BitRate, 0, 1<<30)
	parseStringSetting("DEST_ADDRESS", &cfg.DestAddress)
	parseIntSetting("DEST_PORT", &cfg.DestPort, 1, 65535)
	parseStringSetting("BIND_ADDRESS", &cfg.BindAddress)
	parseStringSetting("DUMP_PATH", &cfg.DumpPath)
	parseBoolSetting("FATAL_FRAME_ERRORS", &cfg.FatalFrameErrors)
}

// parseIntSetting updates target from the named variable when it parses
// and lies within [min, max].
func parseIntSetting(name string, target *int, min, max int) {
	envVar := EnvPrefix + name
	str := os.Getenv(envVar)
	if str == "" {
		return
	}

	value, err := strconv.Atoi(str)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     envVar,
			"value":       str,
			"error":       err.Error(),
			"using_value": *target,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	if value < min || value > max {
		logrus.WithFields(logrus.Fields{
			"function":    "parseIntSetting",
			"env_var":     envVar,
			"value":       value,
			"min":         min,
			"max":         max,
			"using_value": *target,
		}).Warn("Environment variable out of bounds, using default")
		return
	}
	*target = value
}

func parseBoolSetting(name string, target *bool) {
	envVar := EnvPrefix + name
	str := os.Getenv(envVar)
	if str == "" {
		return
	}

	value, err := strconv.ParseBool(str)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseBoolSetting",
			"env_var":     envVar,
			"value":       str,
			"error":       err.Error(),
			"using_value": *target,
		}).Warn("Failed to parse environment variable, using default")
		return
	}
	*target = value
}

func parseStringSetting(name string, target *string) {
	if str, ok := os.LookupEnv(EnvPrefix + name); ok {
		*target = str
	}
}

func parseFormatSetting(name string, target *pixfmt.Format) {
	envVar := EnvPrefix + name
	str := os.Getenv(envVar)
	if str == "" {
		return
	}

	format, err := pixfmt.Parse(str)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "parseFormatSetting",
			"env_var":     envVar,
			"value":       str,
			"error":       err.Error(),
			"using_value": target.String(),
		}).Warn("Unknown pixel format in environment variable, using default")
		return
	}
	*target = format
}
