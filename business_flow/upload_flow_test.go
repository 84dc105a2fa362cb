package businessflow

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/amirphl/Kappa/app/dto"
	"github.com/amirphl/Kappa/app/services"
	testingutil "github.com/amirphl/Kappa/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	buf := &bytes.Buffer{}
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	require.NoError(t, jpeg.Encode(buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func uploaded(name, contentType string, data []byte) *dto.UploadedFile {
	return &dto.UploadedFile{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

type uploadFixture struct {
	accounts *testingutil.FakeAccountRepository
	store    *services.LocalFileStore
	flow     UploadFlow
}

func newUploadFixture(t *testing.T, policy UploadPolicy) *uploadFixture {
	t.Helper()
	store, err := services.NewLocalFileStore(t.TempDir())
	require.NoError(t, err)
	accounts := testingutil.NewFakeAccountRepository()
	return &uploadFixture{
		accounts: accounts,
		store:    store,
		flow:     NewUploadFlow(accounts, testingutil.NewFakeAuditLogRepository(), store, policy),
	}
}

func (f *uploadFixture) countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(f.store.Root(), dir))
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	return len(entries)
}

func TestUploadFlow_UploadLogo(t *testing.T) {
	fx := newUploadFixture(t, UploadPolicy{})
	account := seedAccount(t, fx.accounts, "owner@example.com", true)

	resp, err := fx.flow.UploadLogo(ctx(), &dto.UploadLogoRequest{
		AccountID: account.ID,
		File:      uploaded("logo.png", "image/png", pngBytes(t, 40, 20)),
	}, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(resp.URL, "/uploads/logos/logo-"))
	assert.True(t, strings.HasSuffix(resp.URL, ".png"))
	assert.Equal(t, resp.URL, fx.accounts.Get(account.ID).CompanyLogo)

	data, err := fx.store.Read(resp.URL)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestUploadFlow_UploadLogoErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    func(t *testing.T) *dto.UploadedFile
		wantErr func(error) bool
	}{
		{
			name:    "missing file",
			file:    func(*testing.T) *dto.UploadedFile { return nil },
			wantErr: IsNoFileUploaded,
		},
		{
			name: "plain text",
			file: func(*testing.T) *dto.UploadedFile {
				return uploaded("notes.txt", "text/plain", []byte("hello"))
			},
			wantErr: IsUnsupportedMediaType,
		},
		{
			name: "declared png with text bytes",
			file: func(*testing.T) *dto.UploadedFile {
				return uploaded("fake.png", "image/png", []byte("definitely not an image"))
			},
			wantErr: IsUnsupportedMediaType,
		},
		{
			name: "declared jpeg with png bytes",
			file: func(t *testing.T) *dto.UploadedFile {
				return uploaded("logo.jpg", "image/jpeg", pngBytes(t, 4, 4))
			},
			wantErr: IsUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newUploadFixture(t, UploadPolicy{})
			account := seedAccount(t, fx.accounts, "owner@example.com", true)

			_, err := fx.flow.UploadLogo(ctx(), &dto.UploadLogoRequest{AccountID: account.ID, File: tt.file(t)}, nil)
			require.Error(t, err)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
			assert.Zero(t, fx.countFiles(t, "logos"))
		})
	}
}

func TestUploadFlow_UploadLogoTooLarge(t *testing.T) {
	fx := newUploadFixture(t, UploadPolicy{MaxFileSize: 64})
	account := seedAccount(t, fx.accounts, "owner@example.com", true)

	_, err := fx.flow.UploadLogo(ctx(), &dto.UploadLogoRequest{
		AccountID: account.ID,
		File:      uploaded("logo.png", "image/png", pngBytes(t, 64, 64)),
	}, nil)
	assert.True(t, IsFileTooLarge(err))
}

func TestUploadFlow_UploadLogoMissingAccountRemovesFile(t *testing.T) {
	fx := newUploadFixture(t, UploadPolicy{})

	_, err := fx.flow.UploadLogo(ctx(), &dto.UploadLogoRequest{
		AccountID: 404,
		File:      uploaded("logo.png", "image/png", pngBytes(t, 8, 8)),
	}, nil)
	assert.True(t, IsAccountNotFound(err))
	assert.Zero(t, fx.countFiles(t, "logos"))
}

func TestUploadFlow_UploadLogoDownscales(t *testing.T) {
	fx := newUploadFixture(t, UploadPolicy{LogoMaxDimension: 32})
	account := seedAccount(t, fx.accounts, "owner@example.com", true)

	resp, err := fx.flow.UploadLogo(ctx(), &dto.UploadLogoRequest{
		AccountID: account.ID,
		File:      uploaded("logo.png", "image/png", pngBytes(t, 128, 64)),
	}, nil)
	require.NoError(t, err)

	data, err := fx.store.Read(resp.URL)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 16, cfg.Height)
}

func TestUploadFlow_UploadImages(t *testing.T) {
	t.Run("pairs descriptions by index", func(t *testing.T) {
		fx := newUploadFixture(t, UploadPolicy{})
		files := make([]*dto.UploadedFile, 5)
		for i := range files {
			files[i] = uploaded("img.png", "image/png", pngBytes(t, 8, 8))
		}

		resp, err := fx.flow.UploadImages(ctx(), &dto.UploadImagesRequest{
			AccountID:    1,
			Files:        files,
			Descriptions: `["kitchen","bath","roof"]`,
		}, nil)
		require.NoError(t, err)
		require.Len(t, resp.Images, 5)
		assert.Equal(t, "kitchen", resp.Images[0].Description)
		assert.Equal(t, "bath", resp.Images[1].Description)
		assert.Equal(t, "roof", resp.Images[2].Description)
		assert.Equal(t, "", resp.Images[3].Description)
		assert.Equal(t, "", resp.Images[4].Description)
		for _, img := range resp.Images {
			assert.True(t, strings.HasPrefix(img.URL, "/uploads/images/images-"))
		}
		assert.Equal(t, 5, fx.countFiles(t, "images"))
	})

	t.Run("unparsable descriptions", func(t *testing.T) {
		fx := newUploadFixture(t, UploadPolicy{})
		resp, err := fx.flow.UploadImages(ctx(), &dto.UploadImagesRequest{
			Files:        []*dto.UploadedFile{uploaded("a.png", "image/png", pngBytes(t, 8, 8))},
			Descriptions: "not json",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "", resp.Images[0].Description)
	})

	t.Run("no files", func(t *testing.T) {
		fx := newUploadFixture(t, UploadPolicy{})
		_, err := fx.flow.UploadImages(ctx(), &dto.UploadImagesRequest{}, nil)
		assert.True(t, IsNoFilesUploaded(err))
	})

	t.Run("too many files", func(t *testing.T) {
		fx := newUploadFixture(t, UploadPolicy{})
		files := make([]*dto.UploadedFile, 6)
		for i := range files {
			files[i] = uploaded("img.png", "image/png", pngBytes(t, 8, 8))
		}
		_, err := fx.flow.UploadImages(ctx(), &dto.UploadImagesRequest{Files: files}, nil)
		assert.True(t, IsTooManyFiles(err))
		assert.Zero(t, fx.countFiles(t, "images"))
	})

	t.Run("one bad file rejects the batch", func(t *testing.T) {
		fx := newUploadFixture(t, UploadPolicy{})
		files := []*dto.UploadedFile{
			uploaded("a.png", "image/png", pngBytes(t, 8, 8)),
			uploaded("b.txt", "text/plain", []byte("hello")),
		}
		_, err := fx.flow.UploadImages(ctx(), &dto.UploadImagesRequest{Files: files}, nil)
		assert.True(t, IsUnsupportedMediaType(err))
		assert.Zero(t, fx.countFiles(t, "images"))
	})
}

func TestUploadFlow_KeepsOriginalExtension(t *testing.T) {
	fx := newUploadFixture(t, UploadPolicy{})
	account := seedAccount(t, fx.accounts, "owner@example.com", true)

	resp, err := fx.flow.UploadLogo(ctx(), &dto.UploadLogoRequest{
		AccountID: account.ID,
		File:      uploaded("photo.jpeg", "image/jpeg", jpegBytes(t, 16, 16)),
	}, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(resp.URL, ".jpeg"), resp.URL)

	images, err := fx.flow.UploadImages(ctx(), &dto.UploadImagesRequest{
		AccountID: account.ID,
		Files: []*dto.UploadedFile{
			uploaded("Scan.JPG", "image/jpeg", jpegBytes(t, 8, 8)),
			uploaded("capture", "image/jpeg", jpegBytes(t, 8, 8)),
		},
	}, nil)
	require.NoError(t, err)
	require.Len(t, images.Images, 2)
	assert.True(t, strings.HasSuffix(images.Images[0].URL, ".jpg"), images.Images[0].URL)
	assert.True(t, strings.HasSuffix(images.Images[1].URL, ".jpg"), images.Images[1].URL)
}

func TestStoredExtension(t *testing.T) {
	tests := []struct {
		filename  string
		mediaType string
		want      string
	}{
		{"photo.jpeg", "image/jpeg", ".jpeg"},
		{"PHOTO.JPEG", "image/jpeg", ".jpeg"},
		{"photo.jpg", "image/jpeg", ".jpg"},
		{"photo.png", "image/jpeg", ".jpg"},
		{"noext", "image/png", ".png"},
		{"logo.webp", "image/webp", ".webp"},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, storedExtension(tt.filename, tt.mediaType, allowedImageTypes[tt.mediaType]))
		})
	}
}

func TestParseDescriptions(t *testing.T) {
	assert.Nil(t, parseDescriptions(""))
	assert.Nil(t, parseDescriptions("{}"))
	assert.Equal(t, []string{"a", "", "c"}, parseDescriptions(`["a", 3, "c"]`))
}
