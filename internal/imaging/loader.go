package imaging

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
)

// DefaultPrefix is the file name prefix of frames written by the acquisition rig.
const DefaultPrefix = "w1a"

// ErrInput reports that the frame input cannot be used at all: no frames were
// found, none could be decoded, or a background could not be built.
var ErrInput = errors.New("input error")

var frameExtensions = []string{".jpg", ".jpeg", ".png", ".tiff", ".tif"}

// FrameSource is an ordered, indexable sequence of frames.
//
// Implementations must be safe for concurrent calls to Frame with different
// indices; frame extraction runs one task per frame on a worker pool.
type FrameSource interface {
	// Len returns the number of frames in the sequence.
	Len() int

	// Frame decodes frame i (0-based) as a luminance raster.
	Frame(i int) (*Raster, error)
}

// Sequence is a sorted list of frame files inside one directory.
//
// Sequence implements FrameSource by decoding files on demand, so memory use
// stays bounded by the number of frames being processed concurrently.
type Sequence struct {
	// Directory is the directory the frames were discovered in.
	Directory string

	// Prefix is the file name prefix used during discovery.
	Prefix string

	// Files holds the frame file names (not paths), sorted ascending.
	Files []string
}

// DiscoverSequence lists the frames of a directory.
//
// A file belongs to the sequence when its lower-cased name starts with the
// lower-cased prefix and ends in .jpg, .jpeg, .png, .tif or .tiff. Names are
// sorted lexically, which matches the zero-padded numbering of the rig.
//
// # Errors
//
//   - The directory cannot be read (wrapped os error)
//   - No file matches (wraps ErrInput)
func DiscoverSequence(dir, prefix string) (*Sequence, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	lp := strings.ToLower(prefix)
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasPrefix(name, lp) || !hasFrameExtension(name) {
			continue
		}
		files = append(files, e.Name())
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no frames matching %q in %s", ErrInput, prefix, dir)
	}
	sort.Strings(files)

	return &Sequence{Directory: dir, Prefix: prefix, Files: files}, nil
}

func hasFrameExtension(name string) bool {
	ext := filepath.Ext(name)
	for _, e := range frameExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Len returns the number of frames.
func (s *Sequence) Len() int {
	return len(s.Files)
}

// Path returns the full path of frame i.
func (s *Sequence) Path(i int) string {
	return filepath.Join(s.Directory, s.Files[i])
}

// Frame decodes frame i.
func (s *Sequence) Frame(i int) (*Raster, error) {
	if i < 0 || i >= len(s.Files) {
		return nil, fmt.Errorf("frame index %d out of range [0,%d)", i, len(s.Files))
	}
	img, err := LoadImage(s.Path(i))
	if err != nil {
		return nil, err
	}
	return FromImage(img), nil
}

// Slice restricts the sequence to frames start..end, both 1-based and
// inclusive. Zero values select the first and last frame respectively.
func (s *Sequence) Slice(start, end int) (*Sequence, error) {
	n := len(s.Files)
	if start <= 0 {
		start = 1
	}
	if end <= 0 || end > n {
		end = n
	}
	if start > end {
		return nil, fmt.Errorf("%w: empty frame range %d-%d (sequence has %d frames)", ErrInput, start, end, n)
	}
	files := make([]string, end-start+1)
	copy(files, s.Files[start-1:end])
	return &Sequence{Directory: s.Directory, Prefix: s.Prefix, Files: files}, nil
}

// Sample returns the paths of every stride-th frame starting at frame 0.
func (s *Sequence) Sample(stride int) []string {
	if stride < 1 {
		stride = 1
	}
	paths := make([]string, 0, len(s.Files)/stride+1)
	for i := 0; i < len(s.Files); i += stride {
		paths = append(paths, s.Path(i))
	}
	return paths
}

// Key identifies the sequence for caching purposes.
func (s *Sequence) Key() string {
	if len(s.Files) == 0 {
		return s.Directory
	}
	return fmt.Sprintf("%s|%s|%s|%d", s.Directory, s.Files[0], s.Files[len(s.Files)-1], len(s.Files))
}

// LoadImage decodes an image file. Supported formats are PNG, JPEG, GIF and TIFF.
func LoadImage(path string) (image.Image, error) {
	img, err := imgio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", path, err)
	}
	return img, nil
}

// RasterSource is an in-memory FrameSource.
type RasterSource []*Raster

// Len returns the number of frames.
func (s RasterSource) Len() int { return len(s) }

// Frame returns frame i.
func (s RasterSource) Frame(i int) (*Raster, error) {
	if i < 0 || i >= len(s) {
		return nil, fmt.Errorf("frame index %d out of range [0,%d)", i, len(s))
	}
	if s[i] == nil {
		return nil, fmt.Errorf("frame %d is missing", i)
	}
	return s[i], nil
}

// SequenceInfo contains metadata about a discovered frame sequence.
type SequenceInfo struct {
	// Directory holding the frames.
	Directory string `json:"directory"`

	// Frames is the number of frames discovered.
	Frames int `json:"frames"`

	// FirstFile and LastFile are the first and last frame names in order.
	FirstFile string `json:"first_file"`
	LastFile  string `json:"last_file"`

	// Width and Height are the dimensions of the first frame in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Info decodes the first frame and summarises the sequence.
func (s *Sequence) Info() (*SequenceInfo, error) {
	if len(s.Files) == 0 {
		return nil, fmt.Errorf("%w: empty sequence", ErrInput)
	}
	img, err := LoadImage(s.Path(0))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	return &SequenceInfo{
		Directory: s.Directory,
		Frames:    len(s.Files),
		FirstFile: s.Files[0],
		LastFile:  s.Files[len(s.Files)-1],
		Width:     b.Dx(),
		Height:    b.Dy(),
	}, nil
}
