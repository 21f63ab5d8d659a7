package mediasvc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// ErrUnknownInterpolator is returned when an unsupported interpolation method is specified.
var ErrUnknownInterpolator = errors.New("unknown interpolator")

//nolint:gochecknoglobals
var interpolMap = map[string]draw.Interpolator{
	"nearestneighbor": draw.NearestNeighbor,
	"catmullrom":      draw.CatmullRom,
	"bilinear":        draw.BiLinear,
	"approxbilinear":  draw.ApproxBiLinear,
}

func getInterpolatorByName(name string) (draw.Interpolator, error) {
	interpol, ok := interpolMap[strings.ToLower(name)]
	if !ok {
		return nil, ErrUnknownInterpolator
	}

	return interpol, nil
}

// resizeImage scales an image to width, keeping its aspect ratio, and returns the
// encoded result with its content type. Images are never scaled up: if width is not
// smaller than the original width, resizeImage returns nil bytes.
func resizeImage(data []byte, mimeType string, width int, interpolator string) ([]byte, string, error) {
	interpol, err := getInterpolatorByName(interpolator)
	if err != nil {
		return nil, "", fmt.Errorf("get interpolator: %w", err)
	}

	decoder, err := getDecoderByType(mimeType)
	if err != nil {
		return nil, "", err
	}

	original, err := decoder(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	bounds := original.Bounds()
	if width >= bounds.Dx() {
		return nil, "", nil
	}

	height := max(1, bounds.Dy()*width/bounds.Dx())
	bitmap := image.NewRGBA(image.Rect(0, 0, width, height))

	interpol.Scale(bitmap, bitmap.Bounds(), original, bounds, draw.Over, nil)

	targetType := resizedType(mimeType)

	encoder, err := getEncoderByType(targetType)
	if err != nil {
		return nil, "", err
	}

	var out bytes.Buffer
	if err := encoder(&out, bitmap); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}

	return out.Bytes(), targetType, nil
}
