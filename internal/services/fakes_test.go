package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	astypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// callLog records collaborator calls in the order they happen
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// MockAutoScaling is a fake EC2 Auto Scaling client
type MockAutoScaling struct {
	log          *callLog
	setFunc      func(params *autoscaling.SetDesiredCapacityInput) error
	describeFunc func(params *autoscaling.DescribeAutoScalingGroupsInput) (*autoscaling.DescribeAutoScalingGroupsOutput, error)
}

func (m *MockAutoScaling) SetDesiredCapacity(_ context.Context, params *autoscaling.SetDesiredCapacityInput, _ ...func(*autoscaling.Options)) (*autoscaling.SetDesiredCapacityOutput, error) {
	m.log.add(fmt.Sprintf("SetDesiredCapacity(%s,%d)", aws.ToString(params.AutoScalingGroupName), aws.ToInt32(params.DesiredCapacity)))
	if m.setFunc != nil {
		if err := m.setFunc(params); err != nil {
			return nil, err
		}
	}
	return &autoscaling.SetDesiredCapacityOutput{}, nil
}

func (m *MockAutoScaling) DescribeAutoScalingGroups(_ context.Context, params *autoscaling.DescribeAutoScalingGroupsInput, _ ...func(*autoscaling.Options)) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	m.log.add("DescribeAutoScalingGroups")
	if m.describeFunc != nil {
		return m.describeFunc(params)
	}
	return &autoscaling.DescribeAutoScalingGroupsOutput{
		AutoScalingGroups: []astypes.AutoScalingGroup{{AutoScalingGroupName: aws.String("mc-asg")}},
	}, nil
}

// MockEC2 is a fake EC2 client
type MockEC2 struct {
	log          *callLog
	describeFunc func(params *ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error)
}

func (m *MockEC2) DescribeInstances(_ context.Context, params *ec2.DescribeInstancesInput, _ ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	m.log.add("DescribeInstances")
	if m.describeFunc != nil {
		return m.describeFunc(params)
	}
	return &ec2.DescribeInstancesOutput{}, nil
}

// MockECS is a fake ECS client
type MockECS struct {
	log          *callLog
	updateFunc   func(params *ecs.UpdateServiceInput) error
	describeFunc func(params *ecs.DescribeServicesInput) (*ecs.DescribeServicesOutput, error)
}

func (m *MockECS) UpdateService(_ context.Context, params *ecs.UpdateServiceInput, _ ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error) {
	m.log.add(fmt.Sprintf("UpdateService(%s,%d)", aws.ToString(params.Service), aws.ToInt32(params.DesiredCount)))
	if m.updateFunc != nil {
		if err := m.updateFunc(params); err != nil {
			return nil, err
		}
	}
	return &ecs.UpdateServiceOutput{}, nil
}

func (m *MockECS) DescribeServices(_ context.Context, params *ecs.DescribeServicesInput, _ ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error) {
	m.log.add("DescribeServices")
	if m.describeFunc != nil {
		return m.describeFunc(params)
	}
	return &ecs.DescribeServicesOutput{
		Services: []ecstypes.Service{{ServiceName: aws.String("mc-service"), Status: aws.String("ACTIVE")}},
	}, nil
}

// MockS3 is a fake S3 client serving keys in pages of pageSize
type MockS3 struct {
	log      *callLog
	keys     []string
	pageSize int
	listErr  error
	prefixes []string
}

func (m *MockS3) ListObjectsV2(_ context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.log.add("ListObjectsV2")
	m.prefixes = append(m.prefixes, aws.ToString(params.Prefix))
	if m.listErr != nil {
		return nil, m.listErr
	}

	start := 0
	if params.ContinuationToken != nil {
		fmt.Sscanf(aws.ToString(params.ContinuationToken), "%d", &start)
	}
	size := m.pageSize
	if size == 0 {
		size = 1000
	}
	end := start + size
	if end > len(m.keys) {
		end = len(m.keys)
	}

	out := &s3.ListObjectsV2Output{}
	for _, key := range m.keys[start:end] {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(key)})
	}
	if end < len(m.keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(fmt.Sprintf("%d", end))
	}
	return out, nil
}

// MockPresigner is a fake presigner producing deterministic links
type MockPresigner struct {
	presignErr error
	expires    []time.Duration
}

func (m *MockPresigner) PresignGetObject(_ context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if m.presignErr != nil {
		return nil, m.presignErr
	}
	var opts s3.PresignOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	m.expires = append(m.expires, opts.Expires)
	return &v4.PresignedHTTPRequest{
		URL:    fmt.Sprintf("https://%s.s3.amazonaws.com/%s?X-Amz-Expires=%d", aws.ToString(params.Bucket), aws.ToString(params.Key), int(opts.Expires.Seconds())),
		Method: "GET",
	}, nil
}

// inServiceGroup returns a describe function reporting one instance
func inServiceGroup(instanceID string, state astypes.LifecycleState) func(*autoscaling.DescribeAutoScalingGroupsInput) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
	return func(*autoscaling.DescribeAutoScalingGroupsInput) (*autoscaling.DescribeAutoScalingGroupsOutput, error) {
		return &autoscaling.DescribeAutoScalingGroupsOutput{
			AutoScalingGroups: []astypes.AutoScalingGroup{{
				AutoScalingGroupName: aws.String("mc-asg"),
				Instances: []astypes.Instance{{
					InstanceId:     aws.String(instanceID),
					LifecycleState: state,
				}},
			}},
		}, nil
	}
}

// instanceWithIP returns a describe function reporting the instance's public address
func instanceWithIP(instanceID, ip string) func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
	return func(*ec2.DescribeInstancesInput) (*ec2.DescribeInstancesOutput, error) {
		return &ec2.DescribeInstancesOutput{
			Reservations: []ec2types.Reservation{{
				Instances: []ec2types.Instance{{
					InstanceId:      aws.String(instanceID),
					PublicIpAddress: aws.String(ip),
				}},
			}},
		}, nil
	}
}

// serviceCounts returns a describe function reporting the given task counts
func serviceCounts(desired, pending, running int32) func(*ecs.DescribeServicesInput) (*ecs.DescribeServicesOutput, error) {
	return func(*ecs.DescribeServicesInput) (*ecs.DescribeServicesOutput, error) {
		return &ecs.DescribeServicesOutput{
			Services: []ecstypes.Service{{
				ServiceName:  aws.String("mc-service"),
				Status:       aws.String("ACTIVE"),
				DesiredCount: desired,
				PendingCount: pending,
				RunningCount: running,
			}},
		}, nil
	}
}
