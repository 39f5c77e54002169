package report

import (
	"context"
	"log"

	"github.com/lcpu-club/hpccontainer/container/configure"
	"github.com/lcpu-club/hpccontainer/container/models"
	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"
)

type publisher interface {
	Publish(topic string, body []byte) error
	Stop()
}

// NsqReporter publishes run reports to a topic of nsqd.
type NsqReporter struct {
	producer publisher
	topic    string
}

func NewNsqReporter(conf *configure.NsqConfigure, logger *logrus.Logger) (*NsqReporter, error) {
	config := nsq.NewConfig()
	config.AuthSecret = conf.AuthSecret
	producer, err := nsq.NewProducer(conf.Address, config)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		producer.SetLogger(log.New(logger.WriterLevel(logrus.WarnLevel), "", 0), nsq.LogLevelWarning)
	}
	return &NsqReporter{producer: producer, topic: conf.Topic}, nil
}

func (r *NsqReporter) Name() string {
	return "nsq"
}

func (r *NsqReporter) Report(ctx context.Context, report *models.RunReport) error {
	body, err := encode(report)
	if err != nil {
		return err
	}
	return r.producer.Publish(r.topic, body)
}

func (r *NsqReporter) Close() error {
	r.producer.Stop()
	return nil
}
