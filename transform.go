package edgeshelf

import (
	"errors"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// Fit modes understood by the downstream image processor.
const (
	FitCover     = "cover"
	FitScaleDown = "scale-down"
)

// DefaultQuality is used when a quality parameter is present but not a number.
const DefaultQuality = 85

// Transformation query parameters.
const (
	ParamSize    = "size"
	ParamQuality = "quality"
	ParamFormat  = "format"
	ParamWidth   = "width"
	ParamHeight  = "height"
)

type preset struct {
	name   string
	width  int
	height int
	fit    string
}

var presets = map[string]preset{
	"thumb":     {name: "thumbnail", width: 150, height: 150, fit: FitCover},
	"thumbnail": {name: "thumbnail", width: 150, height: 150, fit: FitCover},
	"small":     {name: "small", width: 300, height: 300, fit: FitScaleDown},
	"medium":    {name: "medium", width: 600, height: 600, fit: FitScaleDown},
	"large":     {name: "large", width: 1200, height: 1200, fit: FitScaleDown},
}

var allowedFormats = map[string]bool{
	"webp": true,
	"avif": true,
	"jpeg": true,
	"jpg":  true,
	"png":  true,
}

var boxPattern = regexp.MustCompile(`^(\d+)x(\d+)$`)

// MaxDimension caps a requested width or height. Larger values, including
// ones that overflow int, are clamped to it.
const MaxDimension = math.MaxInt32

// TransformDescriptor is the canonical form of the transformation requested
// through query parameters. The zero value requests nothing.
//
// Box is set when a preset or WxH size was requested; in that case Width and
// Height hold the box and Fit is non-empty. Without a box, Width and Height
// are independent constraints (0 means unset).
type TransformDescriptor struct {
	Preset  string
	Box     bool
	Width   int
	Height  int
	Fit     string
	Quality int
	Format  string
}

// NormalizeTransform resolves query parameters into a TransformDescriptor.
// Malformed values never fail the request; they are dropped.
func NormalizeTransform(query url.Values) TransformDescriptor {
	var d TransformDescriptor

	size := query.Get(ParamSize)
	if size != "" {
		if p, ok := presets[strings.ToLower(size)]; ok {
			d.Preset = p.name
			d.Box = true
			d.Width, d.Height, d.Fit = p.width, p.height, p.fit
		} else if m := boxPattern.FindStringSubmatch(size); m != nil {
			d.Box = true
			d.Width, d.Height, d.Fit = boxSide(m[1]), boxSide(m[2]), FitScaleDown
		}
	} else {
		d.Width = parseDimension(query.Get(ParamWidth))
		d.Height = parseDimension(query.Get(ParamHeight))
	}

	if q := query.Get(ParamQuality); q != "" {
		d.Quality = normalizeQuality(q)
	}

	if f := strings.ToLower(query.Get(ParamFormat)); allowedFormats[f] {
		d.Format = f
	}

	return d
}

// Empty reports whether the descriptor requests no operation at all.
func (d TransformDescriptor) Empty() bool {
	return !d.Box && d.Width == 0 && d.Height == 0 && d.Quality == 0 && d.Format == ""
}

// Ops renders the resolved operations in a stable order.
func (d TransformDescriptor) Ops() []string {
	var ops []string

	if d.Box {
		ops = append(ops, "w="+strconv.Itoa(d.Width)+",h="+strconv.Itoa(d.Height)+",fit="+d.Fit)
	} else {
		if d.Width > 0 {
			ops = append(ops, "w="+strconv.Itoa(d.Width))
		}
		if d.Height > 0 {
			ops = append(ops, "h="+strconv.Itoa(d.Height))
		}
	}

	if d.Quality > 0 {
		ops = append(ops, "q="+strconv.Itoa(d.Quality))
	}

	if d.Format != "" {
		ops = append(ops, "f="+d.Format)
	}

	return ops
}

func (d TransformDescriptor) String() string {
	return strings.Join(d.Ops(), ",")
}

func parseDimension(s string) int {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(s, "-") {
		return MaxDimension
	}
	if err != nil || n <= 0 {
		return 0
	}
	return min(n, MaxDimension)
}

// boxSide parses one side of a WxH size, which is all digits.
func boxSide(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return MaxDimension
	}
	return min(n, MaxDimension)
}

// normalizeQuality parses the leading integer of s, so "80px" is 80 and
// "12.5" is 12. Values that do not start with a number become DefaultQuality.
func normalizeQuality(s string) int {
	n, ok := leadingInt(strings.TrimSpace(s))
	if !ok {
		n = DefaultQuality
	}
	return max(1, min(100, n))
}

func leadingInt(s string) (int, bool) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		// overflow: saturate in the direction of the sign
		if s[0] == '-' {
			return 1, true
		}
		return 100, true
	}
	return n, true
}
