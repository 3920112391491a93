package s3

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/relloyd/starpipe/constants"
)

// Location is a bucket plus an object key or key prefix.
type Location struct {
	Bucket string `errorTxt:"bucket name" mandatory:"yes"`
	Key    string `errorTxt:"object key"`
	Region string `errorTxt:"bucket region" mandatory:"yes"`
}

func (l Location) String() string {
	return fmt.Sprintf("%v://%v/%v", constants.SourceSchemeS3, l.Bucket, l.Key)
}

// IsURL reports whether s looks like s3://bucket/key.
func IsURL(s string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), constants.SourceSchemeS3+"://")
}

// ParseURL expects s to be of the form s3://<bucket>/<key>
// It returns a Location populated with the components of s and the supplied region.
// If region is empty the default region is used.
func ParseURL(s string, region string) (retval Location, err error) {
	s3url, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return retval, fmt.Errorf("error parsing S3 URL: %v", err)
	}
	if s3url.Scheme != constants.SourceSchemeS3 {
		return retval, fmt.Errorf("expected S3 URL scheme %q but got %q", constants.SourceSchemeS3, s3url.Scheme)
	}
	retval.Bucket = s3url.Host
	if retval.Bucket == "" {
		return retval, fmt.Errorf("failed to parse bucket name from %q", s)
	}
	retval.Key = strings.Trim(s3url.Path, "/")
	retval.Region = region
	if retval.Region == "" {
		retval.Region = constants.DefaultS3Region
	}
	return
}
