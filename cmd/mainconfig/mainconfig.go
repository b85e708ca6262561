// Package mainconfig builds the AWS clients the binaries share.
package mainconfig

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/wolfman30/medspa-availability/internal/config"
)

// ErrNoQueue is returned when booking events have no queue configured.
var ErrNoQueue = errors.New("mainconfig: BOOKING_EVENTS_QUEUE_URL not set")

// LoadAWSConfig resolves region and credentials. Static keys are used only
// when both halves are present; otherwise the default chain applies.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	key, secret := strings.TrimSpace(cfg.AWSAccessKeyID), strings.TrimSpace(cfg.AWSSecretAccessKey)
	if key != "" && secret != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(key, secret, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("mainconfig: load aws config: %w", err)
	}
	return awsCfg, nil
}

// BookingEventsClient returns the SQS client and queue URL for booking
// events. AWS_ENDPOINT_OVERRIDE points the client at LocalStack.
func BookingEventsClient(ctx context.Context, cfg *appconfig.Config) (*sqs.Client, string, error) {
	queueURL := strings.TrimSpace(cfg.BookingEventsQueueURL)
	if queueURL == "" {
		return nil, "", ErrNoQueue
	}
	awsCfg, err := LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, "", err
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return client, queueURL, nil
}
