package utils

import (
	"fmt"
	"os"
	"path"
	"runtime"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// SetupLogging configures the standard logger. The level is one of the
// logrus level names, e.g. "debug" or "warn".
func SetupLogging(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level: %s", level)
	}

	log.SetLevel(lvl)
	log.SetOutput(os.Stdout)
	log.SetReportCaller(lvl >= log.DebugLevel)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			_, filename := path.Split(f.File)
			return "", fmt.Sprintf("%20v:%-5d", filename, f.Line)
		},
	})
	return nil
}
