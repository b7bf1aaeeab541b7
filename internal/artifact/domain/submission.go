package domain

import "strings"

// Submission is the evidence a user sends for one artifact type.
// The set of implementations is closed; add a case to BuildPayload and
// DecodeSubmission whenever a new type is introduced.
type Submission interface {
	Type() ArtifactType
	Validate(limits Limits) error
	submission()
}

type LinkSubmission struct {
	URL string `json:"link_url"`
}

type TextSubmission struct {
	Text string `json:"text"`
}

type EmailSubmission struct {
	Email string `json:"email"`
}

type ImageSubmission struct {
	ImagePath string `json:"image_path"`
}

type ImageWithGeolocationSubmission struct {
	ImagePath string   `json:"image_path"`
	Lat       float64  `json:"lat"`
	Lon       float64  `json:"lon"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

type NoneSubmission struct{}

type PostingSubmission struct {
	PostingCount int    `json:"posting_count"`
	LocationText string `json:"location_text"`
}

type PosterSubmission struct {
	Prefecture   string   `json:"prefecture"`
	City         string   `json:"city"`
	BoardNumber  string   `json:"board_number"`
	BoardName    *string  `json:"board_name,omitempty"`
	BoardNote    *string  `json:"board_note,omitempty"`
	BoardAddress *string  `json:"board_address,omitempty"`
	BoardLat     *float64 `json:"board_lat,omitempty"`
	BoardLong    *float64 `json:"board_long,omitempty"`
}

// QuizSubmission carries nothing; grading happens before Achieve is called.
type QuizSubmission struct{}

type LinkAccessSubmission struct{}

type YouTubeSubmission struct {
	URL string `json:"link_url"`
}

type YouTubeCommentSubmission struct {
	URL string `json:"link_url"`
}

func (LinkSubmission) Type() ArtifactType                 { return ArtifactTypeLink }
func (TextSubmission) Type() ArtifactType                 { return ArtifactTypeText }
func (EmailSubmission) Type() ArtifactType                { return ArtifactTypeEmail }
func (ImageSubmission) Type() ArtifactType                { return ArtifactTypeImage }
func (ImageWithGeolocationSubmission) Type() ArtifactType { return ArtifactTypeImageWithGeolocation }
func (NoneSubmission) Type() ArtifactType                 { return ArtifactTypeNone }
func (PostingSubmission) Type() ArtifactType              { return ArtifactTypePosting }
func (PosterSubmission) Type() ArtifactType               { return ArtifactTypePoster }
func (QuizSubmission) Type() ArtifactType                 { return ArtifactTypeQuiz }
func (LinkAccessSubmission) Type() ArtifactType           { return ArtifactTypeLinkAccess }
func (YouTubeSubmission) Type() ArtifactType              { return ArtifactTypeYouTube }
func (YouTubeCommentSubmission) Type() ArtifactType       { return ArtifactTypeYouTubeComment }

func (LinkSubmission) submission()                 {}
func (TextSubmission) submission()                 {}
func (EmailSubmission) submission()                {}
func (ImageSubmission) submission()                {}
func (ImageWithGeolocationSubmission) submission() {}
func (NoneSubmission) submission()                 {}
func (PostingSubmission) submission()              {}
func (PosterSubmission) submission()               {}
func (QuizSubmission) submission()                 {}
func (LinkAccessSubmission) submission()           {}
func (YouTubeSubmission) submission()              {}
func (YouTubeCommentSubmission) submission()       {}

// Normalize trims the URL of link-carrying submissions so the stored value
// and the duplicate lookup compare the same string.
func Normalize(s Submission) Submission {
	switch v := s.(type) {
	case LinkSubmission:
		v.URL = strings.TrimSpace(v.URL)
		return v
	case YouTubeSubmission:
		v.URL = strings.TrimSpace(v.URL)
		return v
	case YouTubeCommentSubmission:
		v.URL = strings.TrimSpace(v.URL)
		return v
	default:
		return s
	}
}
