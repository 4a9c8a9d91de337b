package imaging

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultDilateRadius is the disk radius used to grow the background before
// subtraction.
const DefaultDilateRadius = 3

// Background holds the static background estimate of a frame sequence.
type Background struct {
	// Min is the minimum-intensity projection of the sampled frames.
	Min *Raster

	// Dilated is Min grown with a disk structuring element. It is the image
	// subtracted from each frame during feature extraction.
	Dilated *Raster

	// Sampled is the number of frames that contributed to Min.
	Sampled int
}

// MinProjection builds the minimum-intensity projection of a frame sequence.
//
// Every max(1, n/10)-th frame is sampled and the elementwise minimum is taken,
// starting from a seed of 255 everywhere. A subject that crosses a pixel in a
// few of the sampled frames does not pollute the estimate as long as the pixel
// is uncovered in at least one sample.
//
// Unreadable frames and frames whose size differs from the first readable one
// are logged and skipped.
//
// # Errors
//
// Returns an error wrapping ErrInput when the source is empty or none of the
// sampled frames could be decoded.
func MinProjection(src FrameSource) (*Raster, int, error) {
	n := src.Len()
	if n == 0 {
		return nil, 0, fmt.Errorf("%w: no frames to build a background from", ErrInput)
	}

	skip := n / 10
	if skip < 1 {
		skip = 1
	}

	var minImg *Raster
	sampled := 0
	for i := 0; i < n; i += skip {
		frame, err := src.Frame(i)
		if err != nil {
			log.Warn().
				Str("evt.name", "background.frame_unreadable").
				Int("frame", i).
				Err(err).
				Msg("skipping unreadable frame")
			continue
		}
		if minImg == nil {
			minImg = NewFilledRaster(frame.Width, frame.Height, 255)
		}
		if !frame.SameSize(minImg) {
			log.Warn().
				Str("evt.name", "background.frame_size_mismatch").
				Int("frame", i).
				Int("width", frame.Width).
				Int("height", frame.Height).
				Msg("skipping frame with unexpected size")
			continue
		}
		for p, v := range frame.Pix {
			if v < minImg.Pix[p] {
				minImg.Pix[p] = v
			}
		}
		sampled++
	}

	if sampled == 0 {
		return nil, 0, fmt.Errorf("%w: none of the sampled frames could be read", ErrInput)
	}
	return minImg, sampled, nil
}

// DiskOffsets returns the offsets (dx, dy) of a disk structuring element of
// the given radius: every offset with dx*dx+dy*dy <= radius*radius.
func DiskOffsets(radius int) [][2]int {
	if radius < 0 {
		radius = 0
	}
	offsets := make([][2]int, 0, (2*radius+1)*(2*radius+1))
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				offsets = append(offsets, [2]int{dx, dy})
			}
		}
	}
	return offsets
}

// Dilate applies grey-level dilation with a disk structuring element.
//
// Each output pixel is the maximum of the input over the disk centred on it.
// Neighbours outside the raster are ignored. Dilation grows bright regions so
// the subtracted background tolerates small frame-to-frame jitter.
func Dilate(src *Raster, radius int) *Raster {
	dst := NewRaster(src.Width, src.Height)
	offsets := DiskOffsets(radius)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			best := math.Inf(-1)
			for _, o := range offsets {
				nx, ny := x+o[0], y+o[1]
				if nx < 0 || nx >= src.Width || ny < 0 || ny >= src.Height {
					continue
				}
				if v := src.Pix[ny*src.Width+nx]; v > best {
					best = v
				}
			}
			dst.Pix[y*dst.Width+x] = best
		}
	}
	return dst
}

// BuildBackground computes the minimum projection of src and its dilation.
func BuildBackground(src FrameSource, dilateRadius int) (*Background, error) {
	minImg, sampled, err := MinProjection(src)
	if err != nil {
		return nil, err
	}
	return &Background{
		Min:     minImg,
		Dilated: Dilate(minImg, dilateRadius),
		Sampled: sampled,
	}, nil
}

// DefaultCacheSize is the number of backgrounds a cache keeps by default.
const DefaultCacheSize = 8

// BackgroundCache provides thread-safe caching of built backgrounds.
//
// Building a background decodes a tenth of the sequence, so repeated analyses
// of the same directory (for example several MCP calls with different signal
// parameters) reuse the cached copy. Entries are keyed by Sequence.Key and the
// dilation radius. Once the cache is full the oldest entry is evicted.
//
// BackgroundCache is safe for concurrent use by multiple goroutines.
type BackgroundCache struct {
	mu    sync.RWMutex
	items map[string]*Background
	order []string
	max   int
}

// NewBackgroundCache creates an empty cache holding at most maxEntries
// backgrounds. A non-positive size uses DefaultCacheSize.
func NewBackgroundCache(maxEntries int) *BackgroundCache {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	return &BackgroundCache{
		items: make(map[string]*Background),
		max:   maxEntries,
	}
}

// Get returns the cached background for key, building it from src on a miss.
func (c *BackgroundCache) Get(key string, src FrameSource, dilateRadius int) (*Background, error) {
	k := fmt.Sprintf("%s|r%d", key, dilateRadius)

	c.mu.RLock()
	if bg, ok := c.items[k]; ok {
		c.mu.RUnlock()
		return bg, nil
	}
	c.mu.RUnlock()

	bg, err := BuildBackground(src, dilateRadius)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.items[k]; ok {
		// built concurrently by another caller
		return cached, nil
	}
	c.items[k] = bg
	c.order = append(c.order, k)
	for len(c.order) > c.max {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
	return bg, nil
}

// Len returns the number of cached backgrounds.
func (c *BackgroundCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Clear removes all cached backgrounds and returns how many there were.
func (c *BackgroundCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.items)
	c.items = make(map[string]*Background)
	c.order = nil
	return n
}
