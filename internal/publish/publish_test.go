package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedKey(t *testing.T) {
	orig := newKey
	newKey = func() string { return "01TEST" }
	t.Cleanup(func() { newKey = orig })
}

func TestDirPublisherWritesFile(t *testing.T) {
	fixedKey(t)
	dir := filepath.Join(t.TempDir(), "out")
	loc, err := (&DirPublisher{Dir: dir}).Publish(context.Background(), "image_with_elements.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "01TEST_image_with_elements.png", filepath.Base(loc))
	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestObjectNameRejectsPaths(t *testing.T) {
	for _, name := range []string{"", "..", "a/b.png", "../x.png", `a\b.png`} {
		_, err := objectName(name)
		assert.Error(t, err, name)
	}
}

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3PublisherUploads(t *testing.T) {
	fixedKey(t)
	fake := &fakeS3{}
	p := &S3Publisher{client: fake, bucket: "memes", prefix: "exports"}
	loc, err := p.Publish(context.Background(), "image_with_elements.png", []byte("data"))
	require.NoError(t, err)
	assert.Equal(t, "s3://memes/exports/01TEST_image_with_elements.png", loc)
	assert.Equal(t, "memes", aws.ToString(fake.in.Bucket))
	assert.Equal(t, "exports/01TEST_image_with_elements.png", aws.ToString(fake.in.Key))
	assert.Equal(t, "image/png", aws.ToString(fake.in.ContentType))
	assert.Equal(t, "data", string(fake.body))
}

func TestS3PublisherError(t *testing.T) {
	p := &S3Publisher{client: &fakeS3{err: errors.New("denied")}, bucket: "b"}
	_, err := p.Publish(context.Background(), "x.png", nil)
	assert.ErrorContains(t, err, "denied")
}

func TestNewDefaultsToDirectory(t *testing.T) {
	p, err := New(context.Background(), Target{})
	require.NoError(t, err)
	d, ok := p.(*DirPublisher)
	require.True(t, ok)
	assert.Equal(t, ".", d.Dir)
}
