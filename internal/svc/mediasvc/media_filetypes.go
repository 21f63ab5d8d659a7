package mediasvc

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/webp"

	"github.com/mkrupp/promptbank/internal/domain"
)

const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePNG  = "image/png"
	MIMETypeGIF  = "image/gif"
	MIMETypeWebP = "image/webp"
)

//nolint:gochecknoglobals
var (
	imageDecoders = map[string]func(io.Reader) (image.Image, error){
		MIMETypeJPEG: jpeg.Decode,
		MIMETypePNG:  png.Decode,
		MIMETypeGIF:  gif.Decode,
		MIMETypeWebP: webp.Decode,
	}

	imageEncoders = map[string]func(io.Writer, image.Image) error{
		MIMETypeJPEG: func(w io.Writer, i image.Image) error { return jpeg.Encode(w, i, &jpeg.Options{Quality: 85}) },
		MIMETypePNG:  png.Encode,
		MIMETypeGIF:  func(w io.Writer, i image.Image) error { return gif.Encode(w, i, nil) },
	}

	// resizedTypes maps source types without an encoder to the type resized output is written as.
	resizedTypes = map[string]string{
		MIMETypeWebP: MIMETypePNG,
	}
)

// resizable reports whether objects of mimeType can be served at a different width.
func resizable(mimeType string) bool {
	_, ok := imageDecoders[mimeType]

	return ok
}

// resizedType returns the content type resized images of mimeType are encoded as.
func resizedType(mimeType string) string {
	if target, ok := resizedTypes[mimeType]; ok {
		return target
	}

	return mimeType
}

func getDecoderByType(mimeType string) (func(io.Reader) (image.Image, error), error) {
	decoder, ok := imageDecoders[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, mimeType)
	}

	return decoder, nil
}

func getEncoderByType(mimeType string) (func(io.Writer, image.Image) error, error) {
	encoder, ok := imageEncoders[mimeType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrImageTypeNotSupported, mimeType)
	}

	return encoder, nil
}
