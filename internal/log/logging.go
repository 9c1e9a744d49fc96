package log

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

var logger = logrus.New()
var blurSeconds = DefaultOptions.BlurSeconds

//Initialize configures the package-level logger from cfg. Safe to call
//again later to reconfigure (e.g. after a config file reload).
func Initialize(cfg Options) error {
	if err := cfg.Verify(); err != nil {
		return err
	}

	switch cfg.Level {
	case LevelDebug:
		logger.Level = logrus.DebugLevel
	case LevelInfo:
		logger.Level = logrus.InfoLevel
	case LevelWarn:
		logger.Level = logrus.WarnLevel
	case LevelError:
		logger.Level = logrus.ErrorLevel
	default:
		logger.Level = logrus.InfoLevel
	}

	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0750)
		if err != nil {
			return fmt.Errorf("failed to open log file for writing: %w", err)
		}
		logger.Out = f
	}

	blurSeconds = cfg.BlurSeconds

	return nil
}

//Get returns the underlying logrus logger, for callers that need finer
//control (e.g. attaching fields per-connection).
func Get() *logrus.Logger {
	return logger
}

//BlurSeconds returns the currently configured timestamp blur interval.
func BlurSeconds() uint {
	return blurSeconds
}
