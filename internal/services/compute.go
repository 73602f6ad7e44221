package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/imyashkale/mcserver/internal/logger"
	"github.com/imyashkale/mcserver/internal/models"
)

// ComputeService controls the autoscaling group that provides the server's EC2 capacity
type ComputeService struct {
	autoScaling AutoScalingAPI
	ec2         EC2API
	groupName   string
}

// NewComputeService creates a new compute service for the named autoscaling group
func NewComputeService(autoScaling AutoScalingAPI, ec2Client EC2API, groupName string) *ComputeService {
	return &ComputeService{
		autoScaling: autoScaling,
		ec2:         ec2Client,
		groupName:   groupName,
	}
}

// SetDesiredCapacity sets the desired instance count of the group.
// Setting the same value twice is harmless.
func (cs *ComputeService) SetDesiredCapacity(ctx context.Context, capacity int32) error {
	_, err := cs.autoScaling.SetDesiredCapacity(ctx, &autoscaling.SetDesiredCapacityInput{
		AutoScalingGroupName: aws.String(cs.groupName),
		DesiredCapacity:      aws.Int32(capacity),
	})
	if err != nil {
		return fmt.Errorf("failed to set desired capacity of %s: %w", cs.groupName, err)
	}

	logger.WithFields(map[string]interface{}{
		"asg":      cs.groupName,
		"capacity": capacity,
	}).Debug("Desired capacity set")

	return nil
}

// DescribeInstance returns the state of the group's instance.
// A group without instances is not an error: the returned state is marked
// as waiting and carries no address.
func (cs *ComputeService) DescribeInstance(ctx context.Context) (*models.InstanceState, error) {
	groups, err := cs.autoScaling.DescribeAutoScalingGroups(ctx, &autoscaling.DescribeAutoScalingGroupsInput{
		AutoScalingGroupNames: []string{cs.groupName},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe autoscaling group %s: %w", cs.groupName, err)
	}

	instance := pickInstance(groups.AutoScalingGroups)
	if instance == nil {
		return &models.InstanceState{
			LifecycleState: models.WaitingForInstance,
			Waiting:        true,
		}, nil
	}

	state := &models.InstanceState{
		InstanceID:     aws.ToString(instance.InstanceId),
		LifecycleState: string(instance.LifecycleState),
	}

	ip, err := cs.publicIP(ctx, state.InstanceID)
	if err != nil {
		return nil, err
	}
	state.PublicIP = ip

	return state, nil
}

// publicIP looks up the public IPv4 address of an instance, empty if none is assigned yet
func (cs *ComputeService) publicIP(ctx context.Context, instanceID string) (string, error) {
	out, err := cs.ec2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe instance %s: %w", instanceID, err)
	}

	for _, reservation := range out.Reservations {
		for _, instance := range reservation.Instances {
			if aws.ToString(instance.InstanceId) == instanceID {
				return aws.ToString(instance.PublicIpAddress), nil
			}
		}
	}
	return "", nil
}

// pickInstance returns the instance to report on, preferring one that is in service
func pickInstance(groups []astypes.AutoScalingGroup) *astypes.Instance {
	if len(groups) == 0 {
		return nil
	}

	var first *astypes.Instance
	for i := range groups[0].Instances {
		instance := &groups[0].Instances[i]
		if instance.InstanceId == nil {
			continue
		}
		if instance.LifecycleState == astypes.LifecycleStateInService {
			return instance
		}
		if first == nil {
			first = instance
		}
	}
	return first
}
