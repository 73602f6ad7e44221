package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/imyashkale/mcserver/internal/logger"
	"github.com/imyashkale/mcserver/internal/models"
)

// ErrServiceNotFound is returned when ECS does not know the configured service
var ErrServiceNotFound = errors.New("container service not found")

// ContainerService controls the ECS service running the Minecraft container
type ContainerService struct {
	ecs     ECSAPI
	cluster string
	service string
}

// NewContainerService creates a new container service
func NewContainerService(ecsClient ECSAPI, cluster, service string) *ContainerService {
	return &ContainerService{
		ecs:     ecsClient,
		cluster: cluster,
		service: service,
	}
}

// SetDesiredCount sets the desired task count of the service
func (cs *ContainerService) SetDesiredCount(ctx context.Context, count int32) error {
	_, err := cs.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:      aws.String(cs.cluster),
		Service:      aws.String(cs.service),
		DesiredCount: aws.Int32(count),
	})
	if err != nil {
		return fmt.Errorf("failed to update service %s: %w", cs.service, err)
	}

	logger.WithFields(map[string]interface{}{
		"cluster": cs.cluster,
		"service": cs.service,
		"count":   count,
	}).Debug("Desired task count set")

	return nil
}

// DescribeService returns the pending and running task counts of the service
func (cs *ContainerService) DescribeService(ctx context.Context) (*models.ServiceCounts, error) {
	out, err := cs.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cs.cluster),
		Services: []string{cs.service},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe service %s: %w", cs.service, err)
	}

	if len(out.Services) == 0 {
		reason := "no service returned"
		if len(out.Failures) > 0 {
			reason = aws.ToString(out.Failures[0].Reason)
		}
		return nil, fmt.Errorf("%w: %s (%s)", ErrServiceNotFound, cs.service, reason)
	}

	svc := out.Services[0]
	return &models.ServiceCounts{
		Desired: svc.DesiredCount,
		Pending: svc.PendingCount,
		Running: svc.RunningCount,
		Status:  aws.ToString(svc.Status),
	}, nil
}
