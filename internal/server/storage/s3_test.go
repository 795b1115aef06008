package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubAWS(t *testing.T) *string {
	t.Helper()
	origLoad, origNewS3, origNewPre := loadDefaultAWSConfig, newS3ClientFromConfig, newS3PresignClient
	origPut, origGet := presignPutObject, presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		return aws.Config{}, nil
	}

	var endpoint string
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		if opts.BaseEndpoint != nil {
			endpoint = *opts.BaseEndpoint
		}
		assert.True(t, opts.UsePathStyle)
		return &s3.Client{}
	}
	newS3PresignClient = func(*s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
	return &endpoint
}

func testConfig() S3Config {
	return S3Config{
		Region:    "eu-central-1",
		Endpoint:  "http://127.0.0.1:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "jtrack",
	}
}

func TestNewS3Presigner(t *testing.T) {
	endpoint := stubAWS(t)

	p, err := NewS3Presigner(context.Background(), testConfig())
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", *endpoint)
	assert.Equal(t, 15*time.Minute, p.expiry)
	assert.Equal(t, "jtrack", p.bucket)
}

func TestNewS3Presigner_LoadError(t *testing.T) {
	stubAWS(t)
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}

	_, err := NewS3Presigner(context.Background(), testConfig())
	require.ErrorContains(t, err, "no creds")
}

func TestPresignPut(t *testing.T) {
	stubAWS(t)
	presignPutObject = func(_ *s3.PresignClient, _ context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		assert.Equal(t, "jtrack", aws.ToString(in.Bucket))
		assert.Equal(t, "k/1", aws.ToString(in.Key))
		assert.Equal(t, "image/png", aws.ToString(in.ContentType))
		var po s3.PresignOptions
		for _, fn := range optFns {
			fn(&po)
		}
		assert.Equal(t, time.Minute, po.Expires)
		return &v4.PresignedHTTPRequest{URL: "http://put"}, nil
	}

	cfg := testConfig()
	cfg.Expiry = time.Minute
	p, err := NewS3Presigner(context.Background(), cfg)
	require.NoError(t, err)

	url, err := p.PresignPut(context.Background(), "k/1", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://put", url)
}

func TestPresignGet_Error(t *testing.T) {
	stubAWS(t)
	presignGetObject = func(*s3.PresignClient, context.Context, *s3.GetObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("signer down")
	}

	p, err := NewS3Presigner(context.Background(), testConfig())
	require.NoError(t, err)

	_, err = p.PresignGet(context.Background(), "k/1")
	require.ErrorContains(t, err, "presign get k/1")
}

func TestNewStorageKey(t *testing.T) {
	now := time.Date(2025, 3, 7, 23, 0, 0, 0, time.UTC)
	a := NewStorageKey("loc-1", "att-1", now)
	b := NewStorageKey("loc-1", "att-1", now)

	assert.True(t, strings.HasPrefix(a, "locations/loc-1/2025/03/07/att-1-"), a)
	assert.NotEqual(t, a, b)
}
