package domain

import "strings"

// ArtifactType identifies the kind of evidence a mission requires.
type ArtifactType string

const (
	ArtifactTypeLink                 ArtifactType = "LINK"
	ArtifactTypeText                 ArtifactType = "TEXT"
	ArtifactTypeEmail                ArtifactType = "EMAIL"
	ArtifactTypeImage                ArtifactType = "IMAGE"
	ArtifactTypeImageWithGeolocation ArtifactType = "IMAGE_WITH_GEOLOCATION"
	ArtifactTypeNone                 ArtifactType = "NONE"
	ArtifactTypePosting              ArtifactType = "POSTING"
	ArtifactTypePoster               ArtifactType = "POSTER"
	ArtifactTypeQuiz                 ArtifactType = "QUIZ"
	ArtifactTypeLinkAccess           ArtifactType = "LINK_ACCESS"
	ArtifactTypeYouTube              ArtifactType = "YOUTUBE"
	ArtifactTypeYouTubeComment       ArtifactType = "YOUTUBE_COMMENT"
)

// AllArtifactTypes lists every known type in declaration order.
var AllArtifactTypes = []ArtifactType{
	ArtifactTypeLink,
	ArtifactTypeText,
	ArtifactTypeEmail,
	ArtifactTypeImage,
	ArtifactTypeImageWithGeolocation,
	ArtifactTypeNone,
	ArtifactTypePosting,
	ArtifactTypePoster,
	ArtifactTypeQuiz,
	ArtifactTypeLinkAccess,
	ArtifactTypeYouTube,
	ArtifactTypeYouTubeComment,
}

// ParseArtifactType normalizes raw input into a known type.
func ParseArtifactType(raw string) (ArtifactType, bool) {
	value := ArtifactType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, t := range AllArtifactTypes {
		if t == value {
			return t, true
		}
	}
	return "", false
}

// StoresArtifact reports whether a mission_artifacts row is written for the type.
// NONE and LINK_ACCESS complete without evidence.
func (t ArtifactType) StoresArtifact() bool {
	switch t {
	case "", ArtifactTypeNone, ArtifactTypeLinkAccess:
		return false
	default:
		return true
	}
}

// PayloadOptional is true for types that may persist an artifact with no payload fields.
func (t ArtifactType) PayloadOptional() bool {
	return t == ArtifactTypeQuiz
}

func (t ArtifactType) String() string { return string(t) }
