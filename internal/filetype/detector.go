package filetype

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// fileType values follow the layout-parsing API convention.
const (
	PDF   = 0
	Image = 1
)

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
	".webp": true,
}

// Detect returns the fileType for a local file: 0 for PDF, 1 for images.
// Known extensions decide directly; anything else is sniffed by magic bytes,
// and files that are still unrecognized default to image.
func Detect(path string) int {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".pdf" {
		return PDF
	}
	if imageExtensions[ext] {
		return Image
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("file type sniff failed, treating as image")
		return Image
	}
	switch {
	case mtype.Is("application/pdf"):
		return PDF
	case strings.HasPrefix(mtype.String(), "image/"):
		return Image
	}

	log.Warn().
		Str("file", path).
		Str("ext", ext).
		Str("mime", mtype.String()).
		Msg("unrecognized file type, treating as image")
	return Image
}
