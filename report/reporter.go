// Package report hands the run report of a container to the services that
// collect them.
package report

import (
	"context"
	"encoding/json"

	"github.com/lcpu-club/hpccontainer/container/configure"
	"github.com/lcpu-club/hpccontainer/container/models"
	"github.com/sirupsen/logrus"
)

type Reporter interface {
	Name() string
	Report(ctx context.Context, report *models.RunReport) error
	Close() error
}

// NewReporters connects every reporter enabled in conf. A nil conf enables
// none.
func NewReporters(conf *configure.ReportConfigure, logger *logrus.Logger) ([]Reporter, error) {
	reporters := []Reporter{}
	if conf == nil {
		return reporters, nil
	}
	if conf.MinIO != nil {
		r, err := NewMinIOReporter(conf.MinIO)
		if err != nil {
			return reporters, err
		}
		reporters = append(reporters, r)
	}
	if conf.Nsq != nil {
		r, err := NewNsqReporter(conf.Nsq, logger)
		if err != nil {
			return reporters, err
		}
		reporters = append(reporters, r)
	}
	return reporters, nil
}

// Publish sends report to every reporter. Failures are logged and do not
// stop the other reporters.
func Publish(ctx context.Context, reporters []Reporter, report *models.RunReport, logger logrus.FieldLogger) {
	for _, r := range reporters {
		if err := r.Report(ctx, report); err != nil {
			logger.Warnf("Could not send run report to %v: %v", r.Name(), err)
		}
		if err := r.Close(); err != nil {
			logger.Warnf("Could not close %v reporter: %v", r.Name(), err)
		}
	}
}

func encode(report *models.RunReport) ([]byte, error) {
	return json.Marshal(report)
}
