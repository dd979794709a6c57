package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce registers the collector with the default registry. If an
// identical collector is already registered, the existing one is returned
// so that constructors can be called repeatedly (e.g. from tests).
func registerOnce[C prometheus.Collector](collector C) C {
	if err := prometheus.Register(collector); err != nil {
		are := prometheus.AlreadyRegisteredError{}
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}
