package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wenlng/go-captcha/v2/rotate"
)

// CaptchaService guards forgot-password with a rotate challenge. The client
// rotates the thumb until it lines up with the master image and submits the
// angle together with the challenge ID. A challenge is consumed by the first
// verification attempt, successful or not.
type CaptchaService interface {
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool
}

type RotateChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
}

// ChallengeStore keeps target angles until they are consumed or expire
type ChallengeStore interface {
	Put(ctx context.Context, id string, angle int, ttl time.Duration) error
	// Take returns and removes the angle for id
	Take(ctx context.Context, id string) (int, bool, error)
}

type captchaServiceImpl struct {
	rotator rotate.Captcha
	store   ChallengeStore
	ttl     time.Duration
	padding int
}

// NewCaptchaServiceRotate constructs a rotate CaptchaService. padding is the
// accepted angle difference in degrees; imgSizePx the square image size.
func NewCaptchaServiceRotate(store ChallengeStore, ttl time.Duration, padding int, imgSizePx int) (CaptchaService, error) {
	if store == nil {
		return nil, fmt.Errorf("captcha challenge store is required")
	}
	if imgSizePx <= 0 {
		imgSizePx = 220
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	builder := rotate.NewBuilder(
		rotate.WithImageSquareSize(imgSizePx),
	)
	builder.SetResources(
		rotate.WithImages(stripedBackgrounds(4, imgSizePx)),
	)

	return &captchaServiceImpl{
		rotator: builder.Make(),
		store:   store,
		ttl:     ttl,
		padding: padding,
	}, nil
}

func (s *captchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate captcha: %w", err)
	}

	block := captData.GetData()
	if block == nil {
		return nil, errors.New("captcha generator returned no block data")
	}

	masterB64, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumbB64, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	challengeID := uuid.New().String()
	if err := s.store.Put(ctx, challengeID, block.Angle, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store captcha challenge: %w", err)
	}

	return &RotateChallenge{
		ID:                challengeID,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
	}, nil
}

func (s *captchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	if challengeID == "" {
		return false
	}

	target, ok, err := s.store.Take(ctx, challengeID)
	if err != nil || !ok {
		return false
	}

	return rotate.Validate(int(math.Round(userAngle)), target, s.padding)
}

// MemoryChallengeStore is a process-local ChallengeStore
type MemoryChallengeStore struct {
	mu sync.Mutex
	m  map[string]memoryChallenge
}

type memoryChallenge struct {
	angle     int
	expiresAt time.Time
}

// NewMemoryChallengeStore creates the store and sweeps expired entries until ctx is done
func NewMemoryChallengeStore(ctx context.Context) *MemoryChallengeStore {
	s := &MemoryChallengeStore{m: make(map[string]memoryChallenge)}
	go s.sweep(ctx, time.Minute)
	return s
}

func (s *MemoryChallengeStore) Put(_ context.Context, id string, angle int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = memoryChallenge{angle: angle, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (s *MemoryChallengeStore) Take(_ context.Context, id string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[id]
	if !ok {
		return 0, false, nil
	}
	delete(s.m, id)
	if time.Now().After(c.expiresAt) {
		return 0, false, nil
	}
	return c.angle, true, nil
}

func (s *MemoryChallengeStore) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for k, v := range s.m {
				if now.After(v.expiresAt) {
					delete(s.m, k)
				}
			}
			s.mu.Unlock()
		}
	}
}

// RedisChallengeStore shares challenges between instances
type RedisChallengeStore struct {
	rc     *redis.Client
	prefix string
}

func NewRedisChallengeStore(rc *redis.Client, prefix string) *RedisChallengeStore {
	return &RedisChallengeStore{rc: rc, prefix: prefix}
}

func (s *RedisChallengeStore) key(id string) string {
	return s.prefix + ":captcha:" + id
}

func (s *RedisChallengeStore) Put(ctx context.Context, id string, angle int, ttl time.Duration) error {
	return s.rc.Set(ctx, s.key(id), angle, ttl).Err()
}

func (s *RedisChallengeStore) Take(ctx context.Context, id string) (int, bool, error) {
	val, err := s.rc.GetDel(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	angle, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}
	return angle, true, nil
}

func stripedBackgrounds(n, size int) []image.Image {
	imgs := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		imgs = append(imgs, stripedImage(size, 6+rand.IntN(10)))
	}
	return imgs
}

// stripedImage draws diagonal bands with per-pixel noise so the rotation is
// visible to a person but not trivially recoverable from a flat color.
func stripedImage(size, band int) image.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	hue := uint8(rand.IntN(256))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			shade := uint8(90)
			if ((x+y)/band)%2 == 0 {
				shade = 190
			}
			n := uint8(rand.IntN(24))
			rgba.Set(x, y, color.RGBA{R: shade + n/2, G: hue/2 + n, B: 255 - shade/2, A: 255})
		}
	}
	return rgba
}
