package batch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsbatch "github.com/aws/aws-sdk-go-v2/service/batch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/broadinstitute/dig-job-server/internal/apperrors"
)

// AWSBackend implements Backend on AWS Batch, reading job output from the
// CloudWatch Logs stream that Batch attaches to each container.
type AWSBackend struct {
	batch    *awsbatch.Client
	logs     *cloudwatchlogs.Client
	logGroup string
}

// NewAWS creates a backend for the given region. The log group is where AWS
// Batch writes container output (normally /aws/batch/job).
func NewAWS(ctx context.Context, region, logGroup string) (*AWSBackend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &AWSBackend{
		batch:    awsbatch.NewFromConfig(cfg),
		logs:     cloudwatchlogs.NewFromConfig(cfg),
		logGroup: logGroup,
	}, nil
}

// Submit submits the job and returns the AWS Batch job ID.
func (b *AWSBackend) Submit(ctx context.Context, spec JobSpec) (string, error) {
	out, err := b.batch.SubmitJob(ctx, &awsbatch.SubmitJobInput{
		JobName:       aws.String(spec.Name),
		JobQueue:      aws.String(spec.Queue),
		JobDefinition: aws.String(spec.Definition),
		Parameters:    spec.Parameters,
	})
	if err != nil {
		return "", apperrors.Unavailable("batch.submit", err)
	}
	return aws.ToString(out.JobId), nil
}

// Describe returns the job's current state and, once available, the name of
// its container log stream.
func (b *AWSBackend) Describe(ctx context.Context, executionID string) (Execution, error) {
	out, err := b.batch.DescribeJobs(ctx, &awsbatch.DescribeJobsInput{
		Jobs: []string{executionID},
	})
	if err != nil {
		return Execution{}, apperrors.Unavailable("batch.describe", err)
	}
	if len(out.Jobs) == 0 {
		return Execution{}, apperrors.NotFound("execution", executionID)
	}

	detail := out.Jobs[0]
	exec := Execution{State: string(detail.Status)}
	if detail.Container != nil {
		exec.LogLocation = aws.ToString(detail.Container.LogStreamName)
	}
	return exec, nil
}

// FetchLog reads the full log stream in backend order, following forward
// tokens until the stream is exhausted.
func (b *AWSBackend) FetchLog(ctx context.Context, logLocation string) ([]string, error) {
	var lines []string
	var token *string

	for {
		out, err := b.logs.GetLogEvents(ctx, &cloudwatchlogs.GetLogEventsInput{
			LogGroupName:  aws.String(b.logGroup),
			LogStreamName: aws.String(logLocation),
			StartFromHead: aws.Bool(true),
			NextToken:     token,
		})
		if err != nil {
			return nil, apperrors.Unavailable("batch.fetchLog", err)
		}
		for _, event := range out.Events {
			lines = append(lines, aws.ToString(event.Message))
		}
		// The forward token repeats once the stream end is reached.
		if out.NextForwardToken == nil || (token != nil && *token == *out.NextForwardToken) {
			break
		}
		token = out.NextForwardToken
	}
	return lines, nil
}

// Ready verifies the Batch API is reachable.
func (b *AWSBackend) Ready(ctx context.Context) error {
	_, err := b.batch.DescribeJobQueues(ctx, &awsbatch.DescribeJobQueuesInput{
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return apperrors.Unavailable("batch.ready", err)
	}
	return nil
}

// Verify AWSBackend implements Backend
var _ Backend = (*AWSBackend)(nil)
