package services

import (
	"context"
	"fmt"
	"time"

	"github.com/imyashkale/mcserver/internal/logger"
	"github.com/imyashkale/mcserver/internal/metrics"
	"github.com/imyashkale/mcserver/internal/models"
	"golang.org/x/sync/errgroup"
)

// Steps of one activation, in execution order
const (
	StepScaleCompute    = "scale_compute"
	StepScaleService    = "scale_service"
	StepListMods        = "list_mods"
	StepDescribeCompute = "describe_compute"
	StepDescribeService = "describe_service"
)

// StepError reports which step of an activation failed
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ActivationOptions selects the behaviour of an ActivationService
type ActivationOptions struct {
	// DNSName is reported to players as the server address
	DNSName string
	// SignModLinks attaches download links to client mods
	SignModLinks bool
	// ParallelReads fans the three status reads out instead of running them in order
	ParallelReads bool
}

// ActivationService scales the Minecraft server up and reports its status
type ActivationService struct {
	compute    *ComputeService
	containers *ContainerService
	mods       *ModService
	recorder   metrics.Recorder
	opts       ActivationOptions
	now        func() time.Time
}

// NewActivationService creates a new activation service
func NewActivationService(
	compute *ComputeService,
	containers *ContainerService,
	mods *ModService,
	recorder metrics.Recorder,
	opts ActivationOptions,
) *ActivationService {
	if recorder == nil {
		recorder = metrics.NopRecorder{}
	}
	return &ActivationService{
		compute:    compute,
		containers: containers,
		mods:       mods,
		recorder:   recorder,
		opts:       opts,
		now:        time.Now,
	}
}

// Activate requests one instance and one running task, then reads back the
// current state of compute, container service and mod storage.
//
// The start metric is recorded after both scale requests succeeded.
// The two scale requests are set operations, so repeated calls are safe.
// Nothing is retried or rolled back: the first failing step aborts the
// activation and is returned as a *StepError. An autoscaling group without
// instances is reported as waiting, not as a failure.
func (as *ActivationService) Activate(ctx context.Context, req *models.ActivationRequest) (*models.ServerStatusReport, error) {
	log := logger.Component("activation").WithField("request_id", req.RequestID)

	if err := as.compute.SetDesiredCapacity(ctx, 1); err != nil {
		return nil, &StepError{Step: StepScaleCompute, Err: err}
	}
	if err := as.containers.SetDesiredCount(ctx, 1); err != nil {
		return nil, &StepError{Step: StepScaleService, Err: err}
	}

	// recorded once capacity is requested so a slow sink never delays scaling
	identity := req.Caller.MetricIdentity()
	if err := as.recorder.RecordStart(ctx, identity); err != nil {
		log.WithField("error", err.Error()).Warn("Failed to record start metric")
	}
	log.WithField("caller", identity).Info("Requested server capacity")

	report := &models.ServerStatusReport{DNSName: as.opts.DNSName}

	var err error
	if as.opts.ParallelReads {
		err = as.readParallel(ctx, report)
	} else {
		err = as.readSequential(ctx, report)
	}
	if err != nil {
		return nil, err
	}
	report.GeneratedAt = as.now().UTC()

	log.WithFields(map[string]interface{}{
		"lifecycle_state": report.Instance.LifecycleState,
		"pending":         report.Service.Pending,
		"running":         report.Service.Running,
		"ready":           report.Ready(),
	}).Info("Server status collected")

	return report, nil
}

func (as *ActivationService) readSequential(ctx context.Context, report *models.ServerStatusReport) error {
	for _, read := range as.reads(report) {
		if err := read(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (as *ActivationService) readParallel(ctx context.Context, report *models.ServerStatusReport) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, read := range as.reads(report) {
		read := read
		g.Go(func() error { return read(gctx) })
	}
	return g.Wait()
}

// reads returns the three status reads. Each one writes a distinct field of
// report, so they may run concurrently.
func (as *ActivationService) reads(report *models.ServerStatusReport) []func(context.Context) error {
	return []func(context.Context) error{
		func(ctx context.Context) error {
			mods, err := as.mods.ListMods(ctx, as.opts.SignModLinks)
			if err != nil {
				return &StepError{Step: StepListMods, Err: err}
			}
			report.Mods = *mods
			return nil
		},
		func(ctx context.Context) error {
			instance, err := as.compute.DescribeInstance(ctx)
			if err != nil {
				return &StepError{Step: StepDescribeCompute, Err: err}
			}
			report.Instance = *instance
			return nil
		},
		func(ctx context.Context) error {
			counts, err := as.containers.DescribeService(ctx)
			if err != nil {
				return &StepError{Step: StepDescribeService, Err: err}
			}
			report.Service = *counts
			return nil
		},
	}
}
