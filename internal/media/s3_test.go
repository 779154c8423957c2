package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akashvim3/Birthday-Wishes-System/internal/domain"
)

type fakeS3 struct {
	objects map[string]string
	err     error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	key := aws.ToString(in.Key)
	if _, ok := f.objects[key]; !ok {
		return nil, &types.NoSuchKey{Message: aws.String("missing")}
	}
	delete(f.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_PutAndDelete(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}}
	store := NewS3Store(fake, "wish-media", "media")

	ref, err := store.Put(context.Background(), "w1", "voice.ogg", "audio/ogg", strings.NewReader("opus"))
	require.NoError(t, err)
	assert.Equal(t, "media/w1/voice.ogg", ref)
	assert.Equal(t, "opus", fake.objects[ref])

	require.NoError(t, store.Delete(context.Background(), ref))
	assert.Empty(t, fake.objects)

	// second delete of the same object is a no-op
	require.NoError(t, store.Delete(context.Background(), ref))
}

func TestS3Store_DeleteErrors(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{}, err: errors.New("service unavailable")}
	store := NewS3Store(fake, "wish-media", "")

	assert.ErrorIs(t, store.Delete(context.Background(), ""), domain.ErrValidation)
	assert.ErrorContains(t, store.Delete(context.Background(), "w1/video.mp4"), "service unavailable")
	assert.Equal(t, "w1/video.mp4", store.Key("w1", "video.mp4"))
}
