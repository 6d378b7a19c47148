package resources

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/platform/harvester"
	"github.com/imamik/harvester-e2e/internal/testing/fakeapi"
	"github.com/imamik/harvester-e2e/internal/util/converge"
)

func downloadingImages(readyAfter int) fakeapi.Behavior {
	return fakeapi.Behavior{
		OnCreate: func(doc document.Document) {
			_ = doc.Set("status.progress", int64(42))
		},
		ReadyAfter: readyAfter,
		Converge: func(doc document.Document) {
			_ = doc.Set("status.progress", int64(100))
		},
		GoneAfter: 1,
	}
}

func TestFocalImageURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://cloud-images.ubuntu.com/focal/current/focal-server-cloudimg-amd64.img", FocalImageURL(""))
	assert.Equal(t, "http://cache.local/images/focal-server-cloudimg-amd64.img", FocalImageURL("http://cache.local/images"))
}

func TestCreateImageByURL(t *testing.T) {
	t.Parallel()

	srv, hc := newHarvester(t)
	srv.Collection(harvester.PathImages, downloadingImages(3))
	ctx := context.Background()
	o := fastOptions(t)

	ref, doc, err := CreateImageByURL(ctx, hc, "focal-1a2b", FocalImageURL(""), o)
	require.NoError(t, err)
	assert.Equal(t, ImageRef{ID: "default/focal-1a2b", Name: "focal-1a2b", Namespace: "default", SSHUser: "ubuntu"}, ref)

	progress, _ := doc.GetInt64("status.progress")
	assert.Equal(t, int64(100), progress)
	assert.Equal(t, 3, srv.Count(http.MethodGet, "/"+harvester.PathImages+"/default/focal-1a2b"), "polled until the third read converged")

	require.NoError(t, DeleteImage(ctx, hc, ref, o))
	assert.Zero(t, srv.Len(harvester.PathImages))
}

func TestCreateImageByURL_Timeout(t *testing.T) {
	t.Parallel()

	srv, hc := newHarvester(t)
	srv.Collection(harvester.PathImages, downloadingImages(1<<20))

	o := fastOptions(t)
	o.Timeout = 60 * time.Millisecond
	_, _, err := CreateImageByURL(context.Background(), hc, "focal-slow", FocalImageURL(""), o)
	require.Error(t, err)

	var te *converge.TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, err.Error(), "image default/focal-slow")
	assert.Contains(t, err.Error(), "last status 200")
	assert.Equal(t, http.StatusOK, te.Code)
	progress, _ := te.Doc.GetInt64("status.progress")
	assert.Equal(t, int64(42), progress)
	assert.Greater(t, te.Attempts, 1)
}

func TestCreateImageByURL_Rejected(t *testing.T) {
	t.Parallel()

	srv, hc := newHarvester(t)
	srv.Collection(harvester.PathImages, fakeapi.Behavior{CreateCode: http.StatusUnprocessableEntity})

	_, _, err := CreateImageByURL(context.Background(), hc, "focal-bad", "not-a-url", fastOptions(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 422")
	assert.Zero(t, srv.Count(http.MethodGet, "/"+harvester.PathImages+"/default/focal-bad"))
}

func TestCloudConfigRender(t *testing.T) {
	t.Parallel()

	out, err := DefaultCloudConfig().Render()
	require.NoError(t, err)
	assert.Equal(t, "#cloud-config\nchpasswd:\n  expire: false\npassword: test\nssh_pwauth: true\n", out)
}
