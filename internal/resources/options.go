package resources

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/util/converge"
)

// Options is the poll cadence and logger shared by the flows.
type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	Logger   logr.Logger
}

func (o Options) logger() logr.Logger {
	if o.Logger.GetSink() == nil {
		return logr.Discard()
	}
	return o.Logger
}

func (o Options) wait(desc string, fetch converge.Fetch, pred converge.Predicate) *lifecycle.Wait {
	return &lifecycle.Wait{
		Description: desc,
		Fetch:       fetch,
		Predicate:   pred,
		Interval:    o.Interval,
		Timeout:     o.Timeout,
	}
}
