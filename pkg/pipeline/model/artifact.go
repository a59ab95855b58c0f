package model

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidArtifact is returned when an artifact is not a data URL.
var ErrInvalidArtifact = errors.New("invalid artifact")

// Artifact is an image returned by the server, encoded as a data URL
// (data:image/png;base64,...).
type Artifact string

func (a Artifact) IsZero() bool {
	return a == ""
}

// Decode returns the media type and the raw bytes of the artifact.
func (a Artifact) Decode() (string, []byte, error) {
	rest, ok := strings.CutPrefix(string(a), "data:")
	if !ok {
		return "", nil, errors.Wrap(ErrInvalidArtifact, "missing data scheme")
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.Wrap(ErrInvalidArtifact, "missing payload separator")
	}

	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if mediaType == "" {
		mediaType = "text/plain"
	}

	if !isBase64 {
		data, err := url.PathUnescape(payload)
		if err != nil {
			return "", nil, errors.Wrap(err, "unable to unescape payload")
		}

		return mediaType, []byte(data), nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, errors.Wrap(err, "unable to decode payload")
	}

	return mediaType, data, nil
}

// NewArtifact encodes data as a base64 data URL.
func NewArtifact(mediaType string, data []byte) Artifact {
	return Artifact("data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data))
}

// Image is the source image selected by the user.
type Image struct {
	Name string
	Data []byte
}

func (i Image) Size() int64 {
	return int64(len(i.Data))
}
