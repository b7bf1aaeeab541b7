package domain

import (
	"fmt"
	"strings"
)

// Payload is the normalized column triple stored on mission_artifacts.
type Payload struct {
	LinkURL          *string
	TextContent      *string
	ImageStoragePath *string
}

// IsEmpty reports whether no payload column holds a non-empty value.
func (p Payload) IsEmpty() bool {
	return deref(p.LinkURL) == "" && deref(p.TextContent) == "" && deref(p.ImageStoragePath) == ""
}

// Satisfies mirrors the mission_artifacts CHECK constraint: every type but
// QUIZ needs at least one populated column.
func (p Payload) Satisfies(t ArtifactType) bool {
	return t.PayloadOptional() || !p.IsEmpty()
}

// BuildPayload maps a submission onto the stored columns. A submission whose
// shape does not match t yields an empty payload.
func BuildPayload(t ArtifactType, s Submission) Payload {
	if s == nil || s.Type() != t {
		return Payload{}
	}

	switch v := s.(type) {
	case LinkSubmission:
		return Payload{LinkURL: ptr(v.URL)}
	case YouTubeSubmission:
		return Payload{LinkURL: ptr(v.URL)}
	case YouTubeCommentSubmission:
		return Payload{LinkURL: ptr(v.URL)}
	case TextSubmission:
		return Payload{TextContent: ptr(v.Text)}
	case EmailSubmission:
		return Payload{TextContent: ptr(v.Email)}
	case ImageSubmission:
		return Payload{ImageStoragePath: ptr(v.ImagePath)}
	case ImageWithGeolocationSubmission:
		return Payload{ImageStoragePath: ptr(v.ImagePath)}
	case PostingSubmission:
		return Payload{TextContent: ptr(PostingSummary(v))}
	case PosterSubmission:
		return Payload{TextContent: ptr(PosterSummary(v))}
	case NoneSubmission, QuizSubmission, LinkAccessSubmission:
		return Payload{}
	default:
		return Payload{}
	}
}

// PostingSummary renders "{count}枚を{location}に配布".
func PostingSummary(s PostingSubmission) string {
	return fmt.Sprintf("%d枚を%sに配布", s.PostingCount, s.LocationText)
}

// PosterSummary renders the board the poster was put up on, with the
// optional board name and note.
func PosterSummary(s PosterSubmission) string {
	var b strings.Builder
	b.WriteString(s.Prefecture)
	b.WriteString(s.City)
	b.WriteString(" ")
	b.WriteString(s.BoardNumber)
	if name := deref(s.BoardName); name != "" {
		b.WriteString(" (")
		b.WriteString(name)
		b.WriteString(")")
	}
	b.WriteString("に貼付")
	if note := deref(s.BoardNote); note != "" {
		b.WriteString(" - 状況: ")
		b.WriteString(note)
	}
	return b.String()
}

func ptr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
