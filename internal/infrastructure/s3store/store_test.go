package s3store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/dockyard/internal/layouts/domain"
	"github.com/zjrosen/dockyard/internal/testutil"
)

// fakeClient is an in-memory bucket.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	getErr  error
	putErr  error
}

func newFakeClient() *fakeClient {
	return &fakeClient{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	name := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[name] = data
	f.types[name] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func newTestStore() (*Store, *fakeClient) {
	client := newFakeClient()
	s := NewWithClient(client, "layouts-bucket", "team/layouts.json")
	s.now = func() time.Time { return time.Unix(1700000000, 0) }
	return s, client
}

func sampleState(t testing.TB) domain.State {
	return testutil.NewBuilder(t).
		WithLayout("a",
			testutil.Name("Alpha"),
			testutil.Online(),
			testutil.UpdatedAt(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
			testutil.Payload(`{"grid":true}`)).
		WithRecent("a").
		Build()
}

func TestStore_Name(t *testing.T) {
	s, _ := newTestStore()
	assert.Equal(t, "s3", s.Name())
	assert.NoError(t, s.Close())
}

func TestStore_Load_MissingObject(t *testing.T) {
	s, _ := newTestStore()

	raw, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestStore_Load_NotFoundAPIError(t *testing.T) {
	s, client := newTestStore()
	client.getErr = &smithy.GenericAPIError{Code: "NotFound", Message: "head says no"}

	raw, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestStore_Load_OtherErrorsPropagate(t *testing.T) {
	s, client := newTestStore()
	client.getErr = &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope"}

	_, err := s.Load(context.Background())
	require.Error(t, err)
	var apiErr smithy.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	s, client := newTestStore()
	ctx := context.Background()
	want := sampleState(t)

	require.NoError(t, s.Save(ctx, want))
	assert.Equal(t, "application/json", client.types["layouts-bucket/team/layouts.json"])

	raw, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.True(t, want.Layouts["a"].Equal(raw.Layouts["a"]))
	assert.Equal(t, want.Recent, raw.Recent)
}

func TestStore_Save_Error(t *testing.T) {
	s, client := newTestStore()
	client.putErr = errors.New("bucket is read-only")

	err := s.Save(context.Background(), sampleState(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3 put object")
}

func TestStore_Load_CorruptObjectIsCopiedAside(t *testing.T) {
	s, client := newTestStore()
	client.objects["layouts-bucket/team/layouts.json"] = []byte("not json")

	raw, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.Equal(t, []byte("not json"), client.objects["layouts-bucket/team/layouts.json.corrupt-1700000000.bak"])
}

func TestStore_Load_CorruptObjectBackupFails(t *testing.T) {
	s, client := newTestStore()
	client.objects["layouts-bucket/team/layouts.json"] = []byte("not json")
	client.putErr = errors.New("denied")

	_, err := s.Load(context.Background())
	require.Error(t, err, "never report absent while the only copy is unpreserved")
}

func TestStore_Load_BlankObject(t *testing.T) {
	s, client := newTestStore()
	client.objects["layouts-bucket/team/layouts.json"] = []byte("\n")

	raw, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestNew_RequiresBucketAndKey(t *testing.T) {
	_, err := New(context.Background(), Options{Bucket: "b"})
	require.Error(t, err)
}
