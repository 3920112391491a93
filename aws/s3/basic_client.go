package s3

import (
	"io"
	"io/ioutil"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// NewBasicClient returns a client for bucket using the default AWS credential chain.
// Every key passed to the client is relative to prefix.
func NewBasicClient(bucket, region, prefix string) BasicClient {
	sess := session.Must(session.NewSession(aws.NewConfig().WithRegion(region)))
	return NewBasicClientWithAPI(bucket, prefix, s3.New(sess))
}

// NewBasicClientWithAPI builds a client around an existing S3 API implementation.
func NewBasicClientWithAPI(bucket, prefix string, api s3iface.S3API) BasicClient {
	return &basicClient{bucket: bucket, prefix: prefix, api: api}
}

type basicClient struct {
	bucket string
	prefix string
	api    s3iface.S3API
}

// List returns the full keys of the objects starting with key.
func (s *basicClient) List(key string) ([]string, error) {
	keys := make([]string, 0)
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.fullKey(key)),
	}
	err := s.api.ListObjectsV2Pages(in, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *basicClient) Get(key string) ([]byte, error) {
	res, err := s.api.GetObject(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
		return nil, ErrKeyNotFound
	} else if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	return ioutil.ReadAll(res.Body)
}

func (s *basicClient) BufferPut(key string, buf io.ReadSeeker) error {
	_, err := s.api.PutObject(&s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
		Body:   buf,
	})
	return err
}

func (s *basicClient) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	if key == "" {
		return path.Clean(s.prefix) + "/"
	}
	return path.Join(s.prefix, key)
}
