// ABOUTME: Photo upload and download for people
// ABOUTME: Bytes go to the blob store, the file id is kept as a photo attribute

package family

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/2389/famlink/internal/keys"
	"github.com/2389/famlink/internal/records"
	"github.com/2389/famlink/internal/tenant"
)

// Upload is one photo file sent for a person.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
	Label    string
	Headshot bool
}

// PhotoResult describes a stored photo.
type PhotoResult struct {
	FileID      string `json:"fileId"`
	AttributeID string `json:"attributeId"`
	IsHeadshot  bool   `json:"isHeadshot"`
}

// AttachPhoto stores a photo for a person. The first photo, or one sent
// as a headshot, becomes the primary photo and the person's photo_file_id.
func (s *Service) AttachPhoto(ctx context.Context, tenantKey, personID string, up Upload) (*PhotoResult, error) {
	if len(up.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	key := tenant.NormalizeKey(tenantKey)

	current, err := s.Attributes(ctx, key, personID)
	if err != nil {
		return nil, err
	}

	filename := strings.TrimSpace(up.Filename)
	if filename == "" {
		filename = personID + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10) + ".jpg"
	}
	mimeType := up.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	fileID, err := s.blobs.Upload(ctx, key, filename, mimeType, up.Data)
	if err != nil {
		return nil, fmt.Errorf("uploading photo: %w", err)
	}

	hasPhoto := false
	for _, a := range current {
		if a.AttributeType == AttributeTypePhoto {
			hasPhoto = true
			break
		}
	}
	primary := up.Headshot || !hasPhoto

	label := strings.TrimSpace(up.Label)
	if label == "" {
		label = "gallery"
	}
	if primary {
		label = "headshot"
		if err := s.clearPrimary(ctx, key, current, AttributeTypePhoto, ""); err != nil {
			return nil, err
		}
	}

	attrID := keys.AttributeID()
	_, err = s.store.Create(ctx, TablePersonAttributes, map[string]string{
		"attribute_id":       attrID,
		"person_id":          personID,
		"attribute_type":     AttributeTypePhoto,
		"value_text":         fileID,
		"label":              label,
		"is_primary":         formatBool(primary),
		"sort_order":         "0",
		"visibility":         "family",
		records.TenantColumn: key,
	}, key)
	if err != nil {
		return nil, err
	}

	if primary {
		if _, err := s.store.Update(ctx, TablePeople, personID,
			map[string]string{"photo_file_id": fileID}, personIDColumn, key); err != nil {
			return nil, fmt.Errorf("setting headshot: %w", err)
		}
	}

	s.logger.Info("photo attached", "tenant", key, "person", personID, "file", fileID, "headshot", primary)
	return &PhotoResult{FileID: fileID, AttributeID: attrID, IsHeadshot: primary}, nil
}

// Photo returns the bytes of a photo visible to the tenant.
func (s *Service) Photo(ctx context.Context, tenantKey, fileID string) (string, []byte, error) {
	recs, err := s.store.List(ctx, TablePersonAttributes, tenantKey)
	if err != nil {
		return "", nil, fmt.Errorf("reading attributes: %w", err)
	}

	for _, r := range recs {
		a := attributeFromRecord(r)
		if a.AttributeType != AttributeTypePhoto || strings.TrimSpace(a.ValueText) != fileID {
			continue
		}
		if err := tenant.AssertScopedValue(a.TenantKey, tenantKey); err != nil {
			return "", nil, err
		}
		return s.blobs.Read(ctx, fileID)
	}
	return "", nil, fmt.Errorf("%w: photo %q", records.ErrRecordNotFound, fileID)
}
