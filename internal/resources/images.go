package resources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/imamik/harvester-e2e/internal/document"
	"github.com/imamik/harvester-e2e/internal/lifecycle"
	"github.com/imamik/harvester-e2e/internal/platform/harvester"
)

const (
	focalImageBaseURL = "https://cloud-images.ubuntu.com/focal/current/"
	focalImageFile    = "focal-server-cloudimg-amd64.img"

	// FocalSSHUser is the default user of Ubuntu cloud images.
	FocalSSHUser = "ubuntu"
)

// ImageRef points guest machines at a downloaded image.
type ImageRef struct {
	ID        string
	Name      string
	Namespace string
	SSHUser   string
}

// FocalImageURL returns the Ubuntu 20.04 cloud image URL, served from
// cacheURL when one is configured.
func FocalImageURL(cacheURL string) string {
	base := focalImageBaseURL
	if cacheURL != "" {
		base = cacheURL
	}
	u, err := url.JoinPath(base, focalImageFile)
	if err != nil {
		return base + "/" + focalImageFile
	}
	return u
}

// CreateImageByURL creates an image downloaded from imageURL and waits
// until status.progress reaches 100.
func CreateImageByURL(ctx context.Context, hc *harvester.Client, name, imageURL string, o Options) (ImageRef, document.Document, error) {
	id := harvester.ID(harvester.DefaultNamespace, name)
	doc, _, err := (&lifecycle.EnsureOperation{
		ResourceType: "image",
		Name:         name,
		Create: func(ctx context.Context) (int, document.Document, error) {
			return hc.Images.Create(ctx, harvester.ImageByURLBody(name, harvester.DefaultNamespace, imageURL))
		},
		Wait: func(document.Document) *lifecycle.Wait {
			return o.wait(fmt.Sprintf("image %s to finish downloading", id), hc.Images.Fetch(id), ProgressComplete)
		},
		Logger: o.logger(),
	}).Execute(ctx)
	if err != nil {
		return ImageRef{}, doc, err
	}

	ref := ImageRef{
		Name:      doc.Name(),
		Namespace: doc.Namespace(),
		SSHUser:   FocalSSHUser,
	}
	ref.ID = harvester.ID(ref.Namespace, ref.Name)
	return ref, doc, nil
}

// DeleteImage deletes an image and waits until it is gone.
func DeleteImage(ctx context.Context, hc *harvester.Client, ref ImageRef, o Options) error {
	return (&lifecycle.DeleteOperation{
		ResourceType: "image",
		ID:           ref.ID,
		Delete: func(ctx context.Context) (int, document.Document, error) {
			return hc.Images.Delete(ctx, ref.ID)
		},
		Confirm:  hc.Images.Fetch(ref.ID),
		Interval: o.Interval,
		Timeout:  o.Timeout,
		Logger:   o.logger(),
	}).Execute(ctx)
}
