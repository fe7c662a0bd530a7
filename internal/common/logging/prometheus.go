package logging

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
)

var installHook sync.Once

// InstallPrometheusHook makes the standard logger count log lines by level on the default prometheus registry.
// Calling it again has no effect.
func InstallPrometheusHook() {
	installHook.Do(func() {
		logrus.AddHook(promrus.MustNewPrometheusHook())
	})
}
