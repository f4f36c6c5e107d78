package services

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryService implements MediaService on Cloudinary.
type CloudinaryService struct {
	cld    *cloudinary.Cloudinary
	folder string
}

func NewCloudinaryService(cloudName, apiKey, apiSecret, folder string) (*CloudinaryService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	if folder == "" {
		folder = "guildhall"
	}
	return &CloudinaryService{cld: cld, folder: folder}, nil
}

// Upload sends the raw bytes to Cloudinary and reports the hosted URL,
// detected resource type and stored size.
func (s *CloudinaryService) Upload(ctx context.Context, data []byte, fileName string) (*MediaResult, error) {
	res, err := s.cld.Upload.Upload(ctx, data, uploader.UploadParams{
		Folder:       s.folder,
		ResourceType: "auto", // let Cloudinary detect image, video, or raw
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	size := int64(res.Bytes)
	if size == 0 {
		size = int64(len(data))
	}
	return &MediaResult{
		URL:          res.SecureURL,
		ResourceType: res.ResourceType,
		SizeBytes:    size,
	}, nil
}
